// Package images writes the embedded images of a document to disk.
package images

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/fumiama/imgsz"
)

// Image describes one extracted file.
type Image struct {
	Path   string `json:"path"`
	Ref    string `json:"ref"`
	Format string `json:"format"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Bytes  int    `json:"bytes"`
}

// Extract writes every image block of s into dir, creating it if needed.
// Files are named image001.png, image002.jpeg, ... in document order.
// Blocks without a payload are logged and skipped.
func Extract(s doctree.Stream, dir string, logger *slog.Logger) ([]Image, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var out []Image
	for b := range s.Blocks() {
		if b.Kind != doctree.KindImage {
			continue
		}
		if len(b.Image) == 0 {
			logger.Warn("image without payload", "doc", s.Title(), "ref", b.Ref)
			continue
		}

		img := Image{Ref: b.Ref, Bytes: len(b.Image)}
		size, format, err := imgsz.DecodeSize(bytes.NewReader(b.Image))
		if err == nil {
			img.Format, img.Width, img.Height = format, size.Width, size.Height
		} else {
			img.Format = strings.TrimPrefix(strings.ToLower(path.Ext(b.Ref)), ".")
			if img.Format == "" {
				img.Format = "bin"
			}
			logger.Debug("unrecognized image format", "ref", b.Ref, "error", err)
		}

		img.Path = filepath.Join(dir, fmt.Sprintf("image%03d.%s", len(out)+1, img.Format))
		if err := os.WriteFile(img.Path, b.Image, 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", img.Path, err)
		}
		out = append(out, img)
	}
	return out, nil
}
