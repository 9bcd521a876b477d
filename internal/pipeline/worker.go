package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/convert"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/pathstore"
	"github.com/dgallion1/docgraph/internal/store"
)

// RecordStore is the SQLite side of a job's output.
type RecordStore interface {
	Save(ctx context.Context, doc store.Document, res *doctree.Result) error
	FindByHash(ctx context.Context, hash string) (*store.Document, error)
}

// GraphWriter applies planned graph writes.
type GraphWriter interface {
	Apply(ctx context.Context, op pathstore.Op) error
}

// Worker processes a single document job.
type Worker struct {
	conv    *convert.Converter
	records RecordStore
	graph   GraphWriter // nil when the graph sink is disabled
	metrics *metrics.Metrics
	log     *slog.Logger

	maxConcurrentStore int
	backoff            func(attempt int) time.Duration
}

func NewWorker(conv *convert.Converter, records RecordStore, graph GraphWriter, m *metrics.Metrics, log *slog.Logger, maxStore int) *Worker {
	return &Worker{
		conv:               conv,
		records:            records,
		graph:              graph,
		metrics:            m,
		log:                log,
		maxConcurrentStore: max(maxStore, 1),
		backoff:            Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer func() {
		job.releaseData()
		w.metrics.JobFinished(string(job.Snapshot().Status))
	}()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	start := time.Now()
	stream, err := w.conv.Open(job.FileData(), job.Filename, job.Title)
	if err != nil {
		w.conv.Failed(job.Filename)
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Structure
	job.SetStatus(StatusStructuring, "structuring")
	res := w.conv.Structure(stream, job.Filename, start)
	job.SetStructure(len(res.Elements), len(res.Triples), len(res.Catalog), len(res.Ambiguities))
	if len(res.Elements) == 0 {
		log.Warn("no blocks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "structuring")
		return
	}

	// Content hash of the parsed content, so re-saved copies dedup.
	hash := ContentHashHex([]byte(resultText(res)))
	job.SetContentHash(hash)

	// Phase 2.5: Dedup check
	if !job.Force {
		existing, err := w.records.FindByHash(ctx, hash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
			job.SetDocID(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	snap := job.Snapshot()
	hadErrors := false

	doc := store.Document{
		ID:          snap.DocID,
		Filename:    snap.Filename,
		Title:       res.Name,
		ContentHash: hash,
		CreatedAt:   snap.CreatedAt,
	}
	err = w.records.Save(ctx, doc, res)
	w.metrics.StoreWrite("sqlite", err)
	if err != nil {
		log.Error("record store failed", "error", err)
		job.AddError(fmt.Sprintf("sqlite: %s", err))
		hadErrors = true
	} else {
		job.MarkRecordStored()
	}

	graphStored := 0
	if w.graph != nil {
		ops := pathstore.Plan(res, pathstore.Meta{
			DocID:       snap.DocID,
			Filename:    snap.Filename,
			ContentHash: hash,
			CreatedAt:   snap.CreatedAt,
		})
		job.SetGraphOps(len(ops))
		var failed int
		graphStored, failed = w.storeGraph(ctx, log, job, ops)
		if failed > 0 {
			hadErrors = true
		}
		log.Info("graph storage complete", "stored", graphStored, "total", len(ops))
	}

	stored := graphStored > 0 || job.Snapshot().Progress.RecordStored
	switch {
	case hadErrors && stored:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// storeGraph applies ops with bounded concurrency. Node writes go first so
// links never reference a node that has not been attempted; the meta node
// is written last, after everything else settled.
func (w *Worker) storeGraph(ctx context.Context, log *slog.Logger, job *Job, ops []pathstore.Op) (stored, failed int) {
	var nodes, links []pathstore.Op
	for _, op := range ops[:len(ops)-1] {
		if op.Link != nil {
			links = append(links, op)
		} else {
			nodes = append(nodes, op)
		}
	}
	meta := ops[len(ops)-1:]

	for _, batch := range [][]pathstore.Op{nodes, links, meta} {
		s, f := w.applyBatch(ctx, log, job, batch)
		stored += s
		failed += f
	}
	return stored, failed
}

func (w *Worker) applyBatch(ctx context.Context, log *slog.Logger, job *Job, ops []pathstore.Op) (stored, failed int) {
	type storeResult struct {
		op  pathstore.Op
		err error
	}
	results := make(chan storeResult, len(ops))
	sem := make(chan struct{}, w.maxConcurrentStore)

	for _, op := range ops {
		sem <- struct{}{}
		go func(op pathstore.Op) {
			defer func() { <-sem }()
			results <- storeResult{op: op, err: w.applyWithRetry(ctx, log, op)}
		}(op)
	}

	for range ops {
		r := <-results
		w.metrics.StoreWrite("pathstore", r.err)
		if r.err != nil {
			log.Error("graph write failed", "target", opTarget(r.op), "error", r.err)
			job.AddError(fmt.Sprintf("graph %s: %s", opTarget(r.op), r.err))
			failed++
			continue
		}
		job.IncrGraphStored()
		stored++
	}
	return stored, failed
}

func (w *Worker) applyWithRetry(ctx context.Context, log *slog.Logger, op pathstore.Op) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = w.graph.Apply(ctx, op)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn("retryable graph error", "target", opTarget(op), "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func opTarget(op pathstore.Op) string {
	if op.Link != nil {
		return op.Link.From + " -> " + op.Link.To
	}
	return op.Key
}

// resultText flattens the structured content into a single string for
// hashing. Image payloads contribute their size only.
func resultText(res *doctree.Result) string {
	var sb strings.Builder
	for _, el := range res.Elements {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		b := el.Block
		switch b.Kind {
		case doctree.KindText:
			sb.WriteString(b.Text)
		case doctree.KindTable:
			cells, _, _ := b.Table.Flatten()
			sb.WriteString(strings.Join(cells, "\t"))
		case doctree.KindImage:
			fmt.Fprintf(&sb, "[image %s %d]", b.Ref, len(b.Image))
		}
	}
	return sb.String()
}
