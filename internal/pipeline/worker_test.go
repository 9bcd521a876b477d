package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docgraph/internal/convert"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pathstore"
	"github.com/dgallion1/docgraph/internal/store"
	"github.com/dgallion1/docgraph/internal/style"
)

type memRecords struct {
	mu   sync.Mutex
	docs map[string]store.Document
	err  error
}

func newMemRecords() *memRecords {
	return &memRecords{docs: make(map[string]store.Document)}
}

func (m *memRecords) Save(_ context.Context, doc store.Document, _ *doctree.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memRecords) FindByHash(_ context.Context, hash string) (*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ContentHash == hash {
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

// flakyGraph fails the first failures calls for every target with 503.
type flakyGraph struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
	applied  []pathstore.Op
	hardFail bool
}

func (g *flakyGraph) Apply(_ context.Context, op pathstore.Op) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	target := opTarget(op)
	g.calls[target]++
	if g.hardFail && op.Link != nil {
		return errors.New("status 400: bad link")
	}
	if g.calls[target] <= g.failures {
		return &pathstore.RetryableError{StatusCode: http.StatusServiceUnavailable}
	}
	g.applied = append(g.applied, op)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(records RecordStore, graph GraphWriter) *Worker {
	conv := convert.New(style.New(style.Default()), parser.Options{Logger: quietLogger()}, nil)
	w := NewWorker(conv, records, graph, nil, quietLogger(), 4)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

const guide = "# Intro\n\nHello.\n\n## Scope\n\nDetails.\n"

func TestWorker_Completed(t *testing.T) {
	records := newMemRecords()
	graph := &flakyGraph{failures: 1}
	w := newTestWorker(records, graph)

	job := NewJob("guide.md", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Triples != 4 || snap.Progress.CatalogEntries != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if !snap.Progress.RecordStored || snap.Progress.GraphStored != snap.Progress.GraphOps {
		t.Errorf("expected every write stored, got %+v", snap.Progress)
	}
	if _, ok := records.docs[job.DocID]; !ok {
		t.Errorf("expected record for %q", job.DocID)
	}
	if last := graph.applied[len(graph.applied)-1]; last.Key != pathstore.DocumentPrefix(job.DocID)+"/meta" {
		t.Errorf("expected meta written last, got %q", opTarget(last))
	}
	if job.FileData() != nil {
		t.Error("expected payload released after processing")
	}
}

func TestWorker_Duplicate(t *testing.T) {
	records := newMemRecords()
	w := newTestWorker(records, nil)

	first := NewJob("guide.md", "", []byte(guide))
	w.Process(context.Background(), first)

	// Same content, different bytes on the wire.
	second := NewJob("copy.md", "", []byte(guide+"\n\n"))
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %q", snap.Status)
	}
	if snap.DocID != first.DocID {
		t.Errorf("expected duplicate to point at %q, got %q", first.DocID, snap.DocID)
	}

	forced := NewJob("copy.md", "", []byte(guide+"\n\n"))
	forced.Force = true
	w.Process(context.Background(), forced)
	if s := forced.Snapshot().Status; s != StatusCompleted {
		t.Errorf("expected forced job to complete, got %q", s)
	}
}

func TestWorker_PartialOnGraphFailure(t *testing.T) {
	records := newMemRecords()
	graph := &flakyGraph{hardFail: true}
	w := newTestWorker(records, graph)

	job := NewJob("guide.md", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected partial, got %q", snap.Status)
	}
	if len(snap.Progress.Errors) != 4 {
		t.Errorf("expected one error per link, got %v", snap.Progress.Errors)
	}
	if graph.calls[opTarget(graph.applied[0])] != 1 {
		t.Error("expected node writes without retries")
	}
}

func TestWorker_FailedWhenNothingStored(t *testing.T) {
	records := newMemRecords()
	records.err = errors.New("disk full")
	w := newTestWorker(records, nil)

	job := NewJob("guide.md", "", []byte(guide))
	w.Process(context.Background(), job)
	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected failed, got %q", s)
	}
}

func TestWorker_SourceUnavailable(t *testing.T) {
	w := newTestWorker(newMemRecords(), nil)
	job := NewJob("broken.docx", "", []byte("not a zip"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed in parsing, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_RetryGivesUp(t *testing.T) {
	graph := &flakyGraph{failures: MaxRetries}
	w := newTestWorker(newMemRecords(), graph)
	op := pathstore.Op{Key: "k"}
	err := w.applyWithRetry(context.Background(), quietLogger(), op)
	if !IsRetryable(err) {
		t.Errorf("expected retryable error after %d attempts, got %v", MaxRetries, err)
	}
	if graph.calls["k"] != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, graph.calls["k"])
	}
}

func TestOrchestrator_SubmitAndStop(t *testing.T) {
	records := newMemRecords()
	conv := convert.New(style.New(style.Default()), parser.Options{Logger: quietLogger()}, nil)
	o := NewOrchestrator(Options{WorkerCount: 2, MaxQueueSize: 4, MaxConcurrentStore: 2, JobTTL: time.Hour},
		conv, records, nil, nil, quietLogger())
	o.Start(context.Background())

	job := NewJob("guide.md", "", []byte(guide))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if o.GetJob(job.ID) != job {
		t.Error("expected job to be tracked")
	}

	o.Stop()
	o.Stop()
	if err := o.Submit(NewJob("late.md", "", []byte("x"))); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after Stop, got %v", err)
	}
}
