package convert

import (
	"errors"
	"slices"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/style"
)

func newConverter() *Converter {
	return New(style.New(style.Default()), parser.Options{}, metrics.New())
}

func TestConvert_Markdown(t *testing.T) {
	src := "# Intro\n\nHello there.\n\n## Scope\n\nDetails.\n"
	res, err := newConverter().Convert([]byte(src), "guide.md", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name != "guide" {
		t.Errorf("expected name %q, got %q", "guide", res.Name)
	}
	want := []doctree.Triple{
		{Subject: "guide", Predicate: "Heading 1", Object: "Intro"},
		{Subject: "Intro", Predicate: "Heading 2", Object: "Hello there."},
		{Subject: "Intro", Predicate: "Heading 2", Object: "Scope"},
		{Subject: "Scope", Predicate: "Heading 3", Object: "Details."},
	}
	if !slices.Equal(res.Triples, want) {
		t.Errorf("expected triples %+v, got %+v", want, res.Triples)
	}
	if len(res.Catalog) != 2 || res.Catalog[1].Chapter != "1.1" {
		t.Errorf("unexpected catalog %+v", res.Catalog)
	}
}

func TestConvert_TitleOverride(t *testing.T) {
	res, err := newConverter().Convert([]byte("just text"), "notes.txt", "Field Notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name != "Field Notes" {
		t.Errorf("expected overridden name, got %q", res.Name)
	}
	if len(res.Triples) != 1 || res.Triples[0].Subject != "Field Notes" {
		t.Errorf("expected body anchored to title, got %+v", res.Triples)
	}
}

func TestConvert_SourceUnavailable(t *testing.T) {
	_, err := newConverter().Convert([]byte("not a zip"), "broken.docx", "")
	if !errors.Is(err, parser.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestConvert_Unsupported(t *testing.T) {
	if _, err := newConverter().Convert([]byte("x"), "image.png", ""); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestFormat(t *testing.T) {
	if got := Format("/tmp/Report.DOCX"); got != "docx" {
		t.Errorf("expected %q, got %q", "docx", got)
	}
}
