package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	s, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Title() != "notes" {
		t.Errorf("expected title %q, got %q", "notes", s.Title())
	}
	blocks := collect(s)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	for i, w := range want {
		if blocks[i].Text != w {
			t.Errorf("block[%d]: expected %q, got %q", i, w, blocks[i].Text)
		}
		if blocks[i].Style != "Normal" {
			t.Errorf("block[%d]: expected Normal style, got %q", i, blocks[i].Style)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	s, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title() != "empty" {
		t.Errorf("expected title %q, got %q", "empty", s.Title())
	}
	if n := len(collect(s)); n != 0 {
		t.Errorf("expected 0 blocks for empty input, got %d", n)
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two.\n   \nPara three."
	p := &TextParser{}
	s, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(collect(s)); n != 3 {
		t.Fatalf("expected 3 blocks, got %d", n)
	}
}

func TestCSVParser_SingleTable(t *testing.T) {
	input := "name,qty\nbolt,4\nnut\n,\nbolt,4\n"
	p := &CSVParser{}
	s, err := p.Parse(strings.NewReader(input), "dir/parts.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title() != "parts" {
		t.Errorf("expected title %q, got %q", "parts", s.Title())
	}
	blocks := collect(s)
	if len(blocks) != 1 || blocks[0].Kind != doctree.KindTable {
		t.Fatalf("expected one table block, got %+v", blocks)
	}
	rows := blocks[0].Table.Rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %q", rows)
	}
	if rows[1][0] != "nut" || rows[1][1] != "" {
		t.Errorf("expected short row to be padded, got %q", rows[1])
	}
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	p := &CSVParser{}
	s, err := p.Parse(strings.NewReader("a,b\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(collect(s)); n != 0 {
		t.Errorf("expected header-only csv to yield no table, got %d blocks", n)
	}
}

func TestHTMLParser_Blocks(t *testing.T) {
	input := `<html><head><title>Guide</title></head><body>
<h1>Intro</h1>
<p>Welcome.</p>
<ul><li>one</li><li>two</li></ul>
<figure><img src="data:image/png;base64,iVBORw0KGgo="><figcaption>Figure 1</figcaption></figure>
<table><caption>Parts</caption><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>
<script>ignored()</script>
</body></html>`
	p := &HTMLParser{}
	s, err := p.Parse(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title() != "Guide" {
		t.Errorf("expected title %q, got %q", "Guide", s.Title())
	}

	blocks := collect(s)
	want := []struct {
		kind  doctree.BlockKind
		style string
		text  string
	}{
		{doctree.KindText, "Heading 1", "Intro"},
		{doctree.KindText, "Normal", "Welcome."},
		{doctree.KindText, "List Bullet", "one"},
		{doctree.KindText, "List Bullet", "two"},
		{doctree.KindImage, "", ""},
		{doctree.KindText, "Caption", "Figure 1"},
		{doctree.KindText, "Caption", "Parts"},
		{doctree.KindTable, "", ""},
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i, w := range want {
		b := blocks[i]
		if b.Kind != w.kind || b.Style != w.style || b.Text != w.text {
			t.Errorf("block %d: expected %s %q %q, got %s %q %q", i, w.kind, w.style, w.text, b.Kind, b.Style, b.Text)
		}
	}
	if img := blocks[4]; len(img.Image) != 8 || img.Ref != "image/png" {
		t.Errorf("expected decoded data URI, got ref %q with %d bytes", img.Ref, len(img.Image))
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.docx", "b.PPTX", "c.md", "d.htm", "e.pdf", "f.csv", "g.txt"} {
		if _, err := ForFile(name, Options{}); err != nil {
			t.Errorf("ForFile(%q): unexpected error %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("expected %q to be supported", name)
		}
	}
	if _, err := ForFile("x.doc", Options{}); err == nil {
		t.Error("expected error for .doc")
	}
}

func TestDOCXParser_NotAZip(t *testing.T) {
	p := &DOCXParser{}
	_, err := p.Parse(strings.NewReader("not a document"), "broken.docx")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}
