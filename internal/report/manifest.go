package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/docmirror/internal/model"
)

// ManifestFileName is the name of the manifest inside the output directory.
const ManifestFileName = "manifest.json"

// WriteManifest writes m to dir/manifest.json as two-space indented JSON
// and returns the file path.
//
// The file is written to a temporary name first and renamed into place, so
// an interrupted run never leaves a truncated manifest behind.
func WriteManifest(dir string, m model.Manifest) (string, error) {
	if m.Failures == nil {
		m.Failures = []string{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFileName)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return path, nil
}
