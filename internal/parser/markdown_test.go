package parser

import (
	"slices"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func collect(s doctree.Stream) []doctree.Block {
	return slices.Collect(s.Blocks())
}

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

- first
- second

## Section B
`
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Title() != "doc" {
		t.Errorf("expected title %q, got %q", "doc", s.Title())
	}

	want := []struct{ style, text string }{
		{"Heading 1", "Title"},
		{"Normal", "Intro text."},
		{"Heading 2", "Section A"},
		{"Normal", "Section A content."},
		{"Heading 3", "Subsection A1"},
		{"List Bullet", "first"},
		{"List Bullet", "second"},
		{"Heading 2", "Section B"},
	}
	blocks := collect(s)
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i, w := range want {
		if blocks[i].Style != w.style || blocks[i].Text != w.text {
			t.Errorf("block %d: expected %s %q, got %s %q", i, w.style, w.text, blocks[i].Style, blocks[i].Text)
		}
	}
}

func TestMarkdownParser_Restartable(t *testing.T) {
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader("# A\n\nbody\n"), "a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, second := collect(s), collect(s)
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("expected 2 blocks on each pass, got %d and %d", len(first), len(second))
	}
}

func TestMarkdownParser_Table(t *testing.T) {
	input := "| Name | Qty |\n|------|-----|\n| a | 1 |\n| a | 1 |\n| b | 2 |\n"
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader(input), "t.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks := collect(s)
	if len(blocks) != 1 || blocks[0].Kind != doctree.KindTable {
		t.Fatalf("expected a single table block, got %+v", blocks)
	}
	tbl := blocks[0].Table
	if !slices.Equal(tbl.Header, []string{"Name", "Qty"}) {
		t.Errorf("unexpected header %q", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Errorf("expected duplicate row collapsed, got %q", tbl.Rows)
	}
}

func TestMarkdownParser_MixedContentWithCodeBlocks(t *testing.T) {
	input := "# API Reference\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks := collect(s)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if !strings.Contains(blocks[1].Text, "GET /api/users") {
		t.Errorf("expected code block content in text, got %q", blocks[1].Text)
	}
	if blocks[2].Text != "More text after code." {
		t.Errorf("expected post-code text, got %q", blocks[2].Text)
	}
}

func TestMarkdownParser_Image(t *testing.T) {
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader("![chart](img/chart.png)\n\nafter\n"), "img.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks := collect(s)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", blocks)
	}
	if blocks[0].Kind != doctree.KindImage || blocks[0].Ref != "img/chart.png" || len(blocks[0].Image) != 0 {
		t.Errorf("expected empty image block for remote image, got %+v", blocks[0])
	}
	if blocks[1].Text != "after" {
		t.Errorf("expected next block to still be produced, got %+v", blocks[1])
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(collect(s)); n != 0 {
		t.Errorf("expected 0 blocks for empty input, got %d", n)
	}
}
