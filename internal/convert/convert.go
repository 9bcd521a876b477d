// Package convert runs a document through a block source and the outline
// builder. The CLI, the HTTP API and the ingest pipeline all go through it.
package convert

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/outline"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/style"
)

// Converter turns raw document bytes into a structural Result.
type Converter struct {
	classifier *style.Classifier
	opts       parser.Options
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New returns a Converter. m may be nil.
func New(c *style.Classifier, opts parser.Options, m *metrics.Metrics) *Converter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
		opts.Logger = log
	}
	return &Converter{classifier: c, opts: opts, metrics: m, log: log}
}

// Open parses data into a block stream without structuring it. A non-empty
// title replaces the one the source reports.
func (c *Converter) Open(data []byte, filename, title string) (doctree.Stream, error) {
	p, err := parser.ForFile(filename, c.opts)
	if err != nil {
		return nil, err
	}
	s, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}
	if title != "" {
		s = titled{Stream: s, title: title}
	}
	return s, nil
}

// Convert parses and structures one document.
func (c *Converter) Convert(data []byte, filename, title string) (*doctree.Result, error) {
	start := time.Now()
	s, err := c.Open(data, filename, title)
	if err != nil {
		c.metrics.ConversionFailed(Format(filename))
		return nil, fmt.Errorf("convert %s: %w", filename, err)
	}
	return c.Structure(s, filename, start), nil
}

// Structure runs the outline walk over an opened stream. start is when the
// conversion began and is used for the duration metric.
func (c *Converter) Structure(s doctree.Stream, filename string, start time.Time) *doctree.Result {
	res := outline.New(c.classifier, c.log).Build(s)
	elapsed := time.Since(start)

	c.metrics.ObserveConversion(Format(filename), res, elapsed)
	c.log.Info("converted document",
		"filename", filename,
		"elements", len(res.Elements),
		"triples", len(res.Triples),
		"catalog", len(res.Catalog),
		"ambiguities", len(res.Ambiguities),
		"duration_ms", elapsed.Milliseconds(),
	)
	return res
}

// Failed records a conversion that did not produce a stream.
func (c *Converter) Failed(filename string) {
	c.metrics.ConversionFailed(Format(filename))
}

// Format is the lower-case extension without the dot, used as a metric label.
func Format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

type titled struct {
	doctree.Stream
	title string
}

func (t titled) Title() string { return t.title }
