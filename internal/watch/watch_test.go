package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/docgraph/internal/pipeline"
)

type chanSubmitter chan *pipeline.Job

func (c chanSubmitter) Submit(job *pipeline.Job) error {
	c <- job
	return nil
}

func waitJob(t *testing.T, jobs chanSubmitter) *pipeline.Job {
	t.Helper()
	select {
	case j := <-jobs:
		return j
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a submitted job")
		return nil
	}
}

func TestWatcher_SubmitsExistingAndNewFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "existing.md"), []byte("# Old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "~$lock.docx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobs := make(chanSubmitter, 8)
	w := New(root, jobs, 1<<20, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	first := waitJob(t, jobs)
	if first.Filename != "existing.md" || first.Origin != "watch" {
		t.Errorf("unexpected initial job %+v", first.Snapshot())
	}

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "new.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "skip.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := waitJob(t, jobs)
	if second.Filename != "new.txt" || string(second.FileData()) != "hello" {
		t.Errorf("unexpected watched job %+v", second.Snapshot())
	}
}

func TestWanted(t *testing.T) {
	tests := map[string]bool{
		"report.docx":     true,
		"deck.PPTX":       true,
		"~$report.docx":   false,
		".hidden.md":      false,
		"photo.png":       false,
		"/a/b/notes.text": false,
	}
	for name, want := range tests {
		if got := wanted(name); got != want {
			t.Errorf("wanted(%q): expected %v, got %v", name, want, got)
		}
	}
}
