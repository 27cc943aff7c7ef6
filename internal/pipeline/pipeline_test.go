package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/docmirror/internal/config"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// mockFinalizer is a mockStep that runs after cancellation.
type mockFinalizer struct {
	mockStep
}

// RunAfterCancel implements Finalizer.
func (m *mockFinalizer) RunAfterCancel() bool {
	return true
}

func newTestRun(t *testing.T) *Run {
	t.Helper()

	cfg := config.NewConfig()
	cfg.RootURL = "https://docs.example.com/docs/"
	run, err := NewRun(cfg)
	if err != nil {
		t.Fatalf("NewRun() error = %v", err)
	}
	return run
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if len(p.StepNames()) != 0 {
			t.Errorf("expected 0 steps, got %v", p.StepNames())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	want := []string{"first", "second", "third"}
	if got := p.StepNames(); !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Run) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("robots"), record("crawl"), record("manifest"))
		run := newTestRun(t)

		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		want := []string{"robots", "crawl", "manifest"}
		if !slices.Equal(order, want) {
			t.Errorf("order = %v, want %v", order, want)
		}
		if !slices.Equal(run.PerformedSteps, want) {
			t.Errorf("PerformedSteps = %v, want %v", run.PerformedSteps, want)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("backend did not start")
		failing := &mockStep{name: "crawl", doFunc: func(context.Context, *Run) error { return errBoom }}
		after := &mockFinalizer{mockStep{name: "manifest"}}

		p := New()
		p.AddSteps(failing, after)
		run := newTestRun(t)

		err := p.Execute(context.Background(), run)
		if !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want %v", err, errBoom)
		}
		if after.callCount != 0 {
			t.Error("step after a failure must not run")
		}
		if run.ErrorMessage != errBoom.Error() {
			t.Errorf("ErrorMessage = %q", run.ErrorMessage)
		}
	})


	t.Run("runs only finalizers after cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		crawl := &mockStep{name: "crawl", doFunc: func(context.Context, *Run) error {
			cancel()
			return nil
		}}
		skipped := &mockStep{name: "extra"}
		manifest := &mockFinalizer{mockStep{name: "manifest"}}

		p := New()
		p.AddSteps(crawl, skipped, manifest)
		run := newTestRun(t)

		err := p.Execute(ctx, run)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute() error = %v, want context.Canceled", err)
		}
		if skipped.callCount != 0 {
			t.Error("non-finalizer step ran after cancellation")
		}
		if manifest.callCount != 1 {
			t.Error("finalizer step did not run after cancellation")
		}
		if !run.Interrupted {
			t.Error("expected run to be marked interrupted")
		}
		if want := []string{"crawl", "manifest"}; !slices.Equal(run.PerformedSteps, want) {
			t.Errorf("PerformedSteps = %v, want %v", run.PerformedSteps, want)
		}
	})
}

func TestNewRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		root     string
		wantRoot string
		wantErr  bool
	}{
		{name: "trailing slash stripped", root: "https://docs.example.com/docs/", wantRoot: "https://docs.example.com/docs"},
		{name: "scheme defaulted", root: "docs.example.com/guide", wantRoot: "https://docs.example.com/guide"},
		{name: "query dropped", root: "https://docs.example.com/docs?x=1#top", wantRoot: "https://docs.example.com/docs"},
		{name: "no host", root: "https:///docs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.RootURL = tt.root
			run, err := NewRun(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewRun(%q) expected error", tt.root)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRun(%q) error = %v", tt.root, err)
			}
			if run.Root != tt.wantRoot {
				t.Errorf("Root = %q, want %q", run.Root, tt.wantRoot)
			}
			if run.StartedAt.IsZero() {
				t.Error("StartedAt not set")
			}
		})
	}
}

func TestRunRecord(t *testing.T) {
	t.Parallel()

	run := newTestRun(t)
	run.Config.OutputDir = "out"
	run.HistoryID = 4

	record := run.Record()
	if record.ID != 4 || record.OutputDir != "out" {
		t.Errorf("Record() = %+v", record)
	}
	if record.Pages != nil {
		t.Error("expected no pages before the crawl ran")
	}
}
