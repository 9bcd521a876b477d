package images

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestExtract(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))); err != nil {
		t.Fatal(err)
	}
	s := &doctree.SliceStream{Name: "doc", Items: []doctree.Block{
		doctree.TextBlock("Normal", "before"),
		doctree.ImageBlock("media/image1.png", buf.Bytes()),
		doctree.ImageBlock("rId9", nil),
		doctree.ImageBlock("media/image3.emf", []byte("EMFDATA")),
	}}

	dir := filepath.Join(t.TempDir(), "out")
	got, err := Extract(s, dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 images, got %+v", got)
	}

	first := got[0]
	if first.Format != "png" || first.Width != 7 || first.Height != 3 {
		t.Errorf("unexpected first image %+v", first)
	}
	if filepath.Base(first.Path) != "image001.png" {
		t.Errorf("expected image001.png, got %q", first.Path)
	}
	if got[1].Format != "emf" || filepath.Base(got[1].Path) != "image002.emf" {
		t.Errorf("expected extension fallback, got %+v", got[1])
	}

	data, err := os.ReadFile(got[1].Path)
	if err != nil || string(data) != "EMFDATA" {
		t.Errorf("expected payload written verbatim, got %q (%v)", data, err)
	}
}
