// Package rebuild composes a Word document from a reconstructed outline.
package rebuild

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/fumiama/go-docx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// emuPerPixel converts 96 dpi pixels to English Metric Units.
const emuPerPixel = 9525

// Rebuilder renders Results as .docx documents. The zero value is not
// usable; call New.
type Rebuilder struct {
	// Heading size in points is BaseSize - Step*level.
	BaseSize float64
	Step     float64
	BodySize float64
	Font     string

	// Images are scaled to exactly this box, in pixels.
	ImageWidth  int
	ImageHeight int

	Logger *slog.Logger
}

// New returns a Rebuilder with the standard layout: 22pt headings shrinking
// 2pt per level, 12pt Arial body text and 450x300 images.
func New(logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{
		BaseSize:    22,
		Step:        2,
		BodySize:    12,
		Font:        "Arial",
		ImageWidth:  450,
		ImageHeight: 300,
		Logger:      logger,
	}
}

// Report counts what a rebuild wrote and skipped.
type Report struct {
	Headings      int `json:"headings"`
	Paragraphs    int `json:"paragraphs"`
	Images        int `json:"images"`
	SkippedImages int `json:"skipped_images"`
	Tables        int `json:"tables"`
}

// HeadingSize returns the heading font size in points for a level.
func (r *Rebuilder) HeadingSize(level int) float64 {
	return r.BaseSize - r.Step*float64(level)
}

// Rebuild composes a document from res. Elements that cannot be rendered
// are skipped.
func (r *Rebuilder) Rebuild(res *doctree.Result) (*docx.Docx, Report, error) {
	tmpl, err := newTemplate(res.Name)
	if err != nil {
		return nil, Report{}, err
	}
	f := docx.New().UseTemplate(templateName, docx.DefaultTemplateFilesList, tmpl)
	log := r.Logger.With("doc", res.Name)

	var rep Report
	title := f.AddParagraph().Style("Title")
	r.font(title.AddText(res.Name), r.BaseSize).Bold()

	chapter := 0
	for _, el := range res.Elements {
		switch el.Block.Kind {
		case doctree.KindImage:
			if err := r.addImage(f, el.Block.Image); err != nil {
				log.Warn("skipping image", "ref", el.Block.Ref, "error", err)
				rep.SkippedImages++
				continue
			}
			rep.Images++

		case doctree.KindTable:
			if r.addTable(f, el.Block.Table) {
				rep.Tables++
			}

		case doctree.KindText:
			switch el.Role {
			case doctree.RoleHeading:
				text := el.Block.Text
				if el.Level > 0 {
					if chapter < len(res.Catalog) {
						text = res.Catalog[chapter].Chapter + " " + text
					}
					chapter++
				}
				p := f.AddParagraph().Style(headingStyleID(el.Level))
				r.font(p.AddText(text), r.HeadingSize(el.Level)).Bold()
				rep.Headings++
			case doctree.RoleListItem:
				p := f.AddParagraph().Style(strings.ReplaceAll(el.Block.Style, " ", ""))
				r.font(p.AddText(el.Block.Text), r.BodySize)
				rep.Paragraphs++
			case doctree.RoleCaption:
				p := f.AddParagraph().Style("Caption")
				r.font(p.AddText(el.Block.Text), r.BodySize)
				rep.Paragraphs++
			default:
				r.font(f.AddParagraph().AddText(el.Block.Text), r.BodySize)
				rep.Paragraphs++
			}
		}
	}
	return f, rep, nil
}

// Write rebuilds res and writes the document to w.
func (r *Rebuilder) Write(res *doctree.Result, w io.Writer) (Report, error) {
	f, rep, err := r.Rebuild(res)
	if err != nil {
		return rep, err
	}
	if _, err := f.WriteTo(w); err != nil {
		return rep, fmt.Errorf("write docx: %w", err)
	}
	return rep, nil
}

// WriteFile rebuilds res into the file at path.
func (r *Rebuilder) WriteFile(res *doctree.Result, path string) (Report, error) {
	out, err := os.Create(path)
	if err != nil {
		return Report{}, fmt.Errorf("create %s: %w", path, err)
	}
	rep, err := r.Write(res, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	return rep, err
}

func (r *Rebuilder) font(run *docx.Run, points float64) *docx.Run {
	return run.Size(strconv.Itoa(int(points * 2))).Font(r.Font, r.Font, r.Font, "")
}

func (r *Rebuilder) addImage(f *docx.Docx, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image payload")
	}
	scaled, err := ScaleImage(data, r.ImageWidth, r.ImageHeight)
	if err != nil {
		return err
	}
	run, err := f.AddParagraph().AddInlineDrawing(scaled)
	if err != nil {
		return fmt.Errorf("embed image: %w", err)
	}
	if d, ok := run.Children[0].(*docx.Drawing); ok && d.Inline != nil {
		d.Inline.Size(int64(r.ImageWidth)*emuPerPixel, int64(r.ImageHeight)*emuPerPixel)
	}
	return nil
}

func (r *Rebuilder) addTable(f *docx.Docx, t *doctree.Table) bool {
	if t == nil || t.Cols() == 0 {
		return false
	}
	out := f.AddTable(len(t.Rows)+1, t.Cols(), 0, nil)
	fill := func(row *docx.WTableRow, cells []string) {
		for i, c := range row.TableCells {
			if i < len(cells) {
				r.font(c.AddParagraph().AddText(cells[i]), r.BodySize)
			}
		}
	}
	fill(out.TableRows[0], t.Header)
	for i, row := range t.Rows {
		fill(out.TableRows[i+1], row)
	}
	return true
}

// ScaleImage decodes an image and re-encodes it as PNG at exactly w x h.
func ScaleImage(data []byte, w, h int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode %s as png: %w", format, err)
	}
	return buf.Bytes(), nil
}
