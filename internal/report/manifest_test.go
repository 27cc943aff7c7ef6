package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/docmirror/internal/model"
)

func TestWriteManifest(t *testing.T) {
	t.Parallel()

	t.Run("writes indented json", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out")
		m := createTestRun().Manifest

		path, err := WriteManifest(dir, m)
		if err != nil {
			t.Fatalf("WriteManifest() error = %v", err)
		}
		if path != filepath.Join(dir, ManifestFileName) {
			t.Errorf("path = %q", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "{\n  \"root_url\": ") {
			t.Errorf("manifest should be two space indented:\n%s", data)
		}
		if !strings.HasSuffix(string(data), "}\n") {
			t.Error("manifest should end with a newline")
		}

		var got model.Manifest
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if got.DownloadedPages != m.DownloadedPages || len(got.Failures) != 1 {
			t.Errorf("unexpected manifest: %+v", got)
		}
	})

	t.Run("nil failures are an empty list", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path, err := WriteManifest(dir, model.Manifest{RootURL: "https://example.com/"})
		if err != nil {
			t.Fatalf("WriteManifest() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"failures": []`) {
			t.Errorf("expected empty failures list:\n%s", data)
		}
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		for i := range 2 {
			if _, err := WriteManifest(dir, model.Manifest{DownloadedPages: i}); err != nil {
				t.Fatalf("WriteManifest() error = %v", err)
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != ManifestFileName {
			t.Errorf("unexpected directory content: %v", entries)
		}
	})

	t.Run("output path is a file", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteManifest(file, model.Manifest{}); err == nil {
			t.Error("expected an error when the output directory is a file")
		}
	})
}
