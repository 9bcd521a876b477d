package rebuild

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/outline"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/style"
)

func structure(title string, blocks ...doctree.Block) *doctree.Result {
	b := outline.New(style.New(style.Default()), nil)
	return b.Build(&doctree.SliceStream{Name: title, Items: blocks})
}

func reparse(t *testing.T, data []byte) (*parser.DOCXStream, []doctree.Block) {
	t.Helper()
	s, err := parser.OpenDOCX(data, "rebuilt.docx", nil)
	if err != nil {
		t.Fatalf("parse rebuilt document: %v", err)
	}
	return s, slices.Collect(s.Blocks())
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	res := structure("T",
		doctree.TextBlock("Heading 1", "A"),
		doctree.TextBlock("Normal", "x"),
	)

	var buf bytes.Buffer
	rep, err := New(nil).Write(res, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Headings != 1 || rep.Paragraphs != 1 {
		t.Errorf("unexpected report %+v", rep)
	}

	s, blocks := reparse(t, buf.Bytes())
	if s.Title() != "T" {
		t.Errorf("expected core title %q, got %q", "T", s.Title())
	}

	again := outline.New(style.New(style.Default()), nil).Build(s)
	headings := again.Headings()
	if len(headings) == 0 {
		t.Fatalf("expected a heading in rebuilt document, got blocks %+v", blocks)
	}
	if h := headings[0]; !strings.HasSuffix(h.Block.Text, "1 A") || h.Level != 1 {
		t.Errorf("expected level 1 heading ending in %q, got %+v", "1 A", h)
	}

	var body []string
	for _, b := range blocks {
		if b.Style == "Normal" {
			body = append(body, b.Text)
		}
	}
	if !slices.Equal(body, []string{"x"}) {
		t.Errorf("expected body %q, got %q", []string{"x"}, body)
	}
}

func TestRebuild_ChaptersAndStyles(t *testing.T) {
	res := structure("Doc",
		doctree.TextBlock("Heading 1", "Intro"),
		doctree.TextBlock("Heading 2", "Scope"),
		doctree.TextBlock("List abc double line", "point"),
		doctree.TextBlock("Caption", "Figure 1"),
		doctree.TextBlock("Heading 1", "Design"),
	)
	var buf bytes.Buffer
	if _, err := New(nil).Write(res, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, blocks := reparse(t, buf.Bytes())

	want := []struct{ style, text string }{
		{"Title", "Doc"},
		{"Heading 1", "1 Intro"},
		{"Heading 2", "1.1 Scope"},
		{"List Bullet", "point"},
		{"Caption", "Figure 1"},
		{"Heading 1", "2 Design"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %+v", len(want), blocks)
	}
	for i, w := range want {
		if blocks[i].Style != w.style || blocks[i].Text != w.text {
			t.Errorf("block %d: expected %s %q, got %s %q", i, w.style, w.text, blocks[i].Style, blocks[i].Text)
		}
	}
}

func TestRebuild_ImagesAndTables(t *testing.T) {
	res := structure("Media",
		doctree.TextBlock("Heading 1", "Pictures"),
		doctree.ImageBlock("good", pngOf(t, 40, 20)),
		doctree.ImageBlock("missing", nil),
		doctree.ImageBlock("garbage", []byte("not an image")),
		doctree.TableBlock(&doctree.Table{Header: []string{"k", "v"}, Rows: [][]string{{"a", "1"}, {"b", "2"}}}),
		doctree.TextBlock("Normal", "end"),
	)

	path := filepath.Join(t.TempDir(), "media.docx")
	rep, err := New(nil).WriteFile(res, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Images != 1 || rep.SkippedImages != 2 || rep.Tables != 1 {
		t.Errorf("unexpected report %+v", rep)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	_, blocks := reparse(t, data)

	var img *doctree.Block
	var tbl *doctree.Table
	for i := range blocks {
		switch blocks[i].Kind {
		case doctree.KindImage:
			img = &blocks[i]
		case doctree.KindTable:
			tbl = blocks[i].Table
		}
	}
	if img == nil {
		t.Fatal("expected an image in the rebuilt document")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img.Image))
	if err != nil {
		t.Fatalf("decode embedded image: %v", err)
	}
	if cfg.Width != 450 || cfg.Height != 300 {
		t.Errorf("expected 450x300, got %dx%d", cfg.Width, cfg.Height)
	}
	if tbl == nil || !slices.Equal(tbl.Header, []string{"k", "v"}) || len(tbl.Rows) != 2 {
		t.Errorf("unexpected table %+v", tbl)
	}
	if last := blocks[len(blocks)-1]; last.Text != "end" {
		t.Errorf("expected rebuild to continue past bad images, last block %+v", last)
	}
}

func TestHeadingSize(t *testing.T) {
	r := New(nil)
	prev := r.HeadingSize(0)
	if prev != 22 {
		t.Errorf("expected 22pt title, got %v", prev)
	}
	for level := 1; level <= 9; level++ {
		size := r.HeadingSize(level)
		if want := 22 - 2*float64(level); size != want {
			t.Errorf("level %d: expected %vpt, got %v", level, want, size)
		}
		if size >= prev {
			t.Errorf("level %d: size %v did not shrink from %v", level, size, prev)
		}
		prev = size
	}
	if r.HeadingSize(9) != 4 {
		t.Errorf("expected 4pt at level 9, got %v", r.HeadingSize(9))
	}
}

func TestScaleImage(t *testing.T) {
	out, err := ScaleImage(pngOf(t, 3, 900), 450, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 450 || cfg.Height != 300 {
		t.Errorf("expected 450x300, got %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := ScaleImage([]byte{1, 2, 3}, 10, 10); err == nil {
		t.Error("expected error for undecodable payload")
	}
}
