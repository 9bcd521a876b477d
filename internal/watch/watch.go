// Package watch submits documents dropped into a directory as ingest jobs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/fsnotify/fsnotify"
)

// Submitter accepts jobs.
type Submitter interface {
	Submit(job *pipeline.Job) error
}

// Watcher turns file creations and writes under a directory into jobs.
type Watcher struct {
	root     string
	submit   Submitter
	maxBytes int64
	log      *slog.Logger

	// Debounce is how long a file must stay quiet before it is read.
	Debounce time.Duration
}

func New(root string, s Submitter, maxBytes int64, log *slog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		submit:   s,
		maxBytes: maxBytes,
		log:      log,
		Debounce: 500 * time.Millisecond,
	}
}

// Run submits the files already present, then watches until ctx is
// cancelled. Subdirectories, including ones created later, are watched too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.log.Info("watcher: started", "root", w.root)
	w.submitTree(w.root)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("watcher: stopped")
			return nil

		case <-timer.C:
			for p := range pending {
				w.submitFile(p)
			}
			clear(pending)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				if ev.Op&fsnotify.Create != 0 {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.log.Warn("watcher: add new dir failed", "path", ev.Name, "error", addErr)
					}
					w.submitTree(ev.Name)
				}
				continue
			}
			if !wanted(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.Debounce)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher: error", "error", watchErr)
		}
	}
}

func (w *Watcher) submitTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !wanted(p) {
			return nil
		}
		w.submitFile(p)
		return nil
	})
}

func (w *Watcher) submitFile(p string) {
	info, err := os.Stat(p)
	if err != nil {
		// Removed again before the debounce fired.
		return
	}
	if w.maxBytes > 0 && info.Size() > w.maxBytes {
		w.log.Warn("watcher: file too large", "path", p, "size", info.Size())
		return
	}
	data, err := os.ReadFile(p)
	if err != nil {
		w.log.Warn("watcher: read failed", "path", p, "error", err)
		return
	}

	job := pipeline.NewJob(filepath.Base(p), "", data)
	job.Origin = "watch"
	if err := w.submit.Submit(job); err != nil {
		w.log.Warn("watcher: submit failed", "path", p, "error", err)
		return
	}
	w.log.Info("watcher: submitted", "path", p, "job_id", job.ID)
}

// wanted filters out unsupported formats, hidden files and Office lock
// files ("~$report.docx").
func wanted(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return parser.IsSupportedExtension(base)
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
