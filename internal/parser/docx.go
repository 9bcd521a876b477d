package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/table"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files.
type DOCXParser struct {
	Logger *slog.Logger
}

func (p *DOCXParser) Parse(r io.Reader, filename string) (doctree.Stream, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, unavailable(filename, err)
	}
	return OpenDOCX(data, filename, p.Logger)
}

// OpenDOCX parses a Word document held in memory.
func OpenDOCX(data []byte, filename string, logger *slog.Logger) (*DOCXStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ra := bytes.NewReader(data)
	doc, err := docx.Parse(ra, int64(len(data)))
	if err != nil {
		return nil, unavailable(filename, fmt.Errorf("parse docx: %w", err))
	}
	zr, err := zip.NewReader(ra, int64(len(data)))
	if err != nil {
		return nil, unavailable(filename, fmt.Errorf("open docx package: %w", err))
	}

	title := coreTitle(zr)
	if title == "" {
		title = baseTitle(filename)
	}
	return &DOCXStream{
		doc:    doc,
		title:  title,
		styles: styleNames(zr),
		vml:    vmlImageRefs(zr),
		log:    logger.With("file", filename),
	}, nil
}

// DOCXStream enumerates the body of a parsed Word document.
type DOCXStream struct {
	doc    *docx.Docx
	title  string
	styles map[string]string
	vml    map[int][]string // body item index -> VML picture rel ids
	log    *slog.Logger
}

func (s *DOCXStream) Title() string { return s.title }

func (s *DOCXStream) Blocks() iter.Seq[doctree.Block] {
	return func(yield func(doctree.Block) bool) {
		for i, item := range s.doc.Document.Body.Items {
			switch it := item.(type) {
			case *docx.Paragraph:
				for _, b := range s.paragraph(it, s.vml[i]) {
					if !yield(b) {
						return
					}
				}
			case *docx.Table:
				t, err := s.table(it)
				if err != nil {
					s.log.Warn("skipping malformed table", "error", err)
					continue
				}
				if len(t.Rows) == 0 {
					s.log.Debug("skipping table without data rows", "header", t.Header)
					continue
				}
				if !yield(doctree.TableBlock(t)) {
					return
				}
			}
		}
	}
}

// paragraph returns the image blocks of a paragraph followed by its text
// block, if it has any text. vml lists legacy picture ids go-docx does not
// decode.
func (s *DOCXStream) paragraph(para *docx.Paragraph, vml []string) []doctree.Block {
	var out []doctree.Block
	for _, rid := range drawingRefs(para) {
		out = append(out, s.image(rid))
	}
	for _, rid := range vml {
		out = append(out, s.image(rid))
	}
	if text := paragraphText(para); text != "" {
		out = append(out, doctree.TextBlock(s.styleName(para), text))
	}
	return out
}

func (s *DOCXStream) styleName(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return "Normal"
	}
	id := para.Properties.Style.Val
	if name, ok := s.styles[id]; ok {
		return name
	}
	return id
}

// image resolves a relationship id to its media payload. A reference that
// cannot be resolved yields an empty image.
func (s *DOCXStream) image(rid string) doctree.Block {
	target, err := s.doc.ReferTarget(rid)
	if err != nil {
		s.log.Warn("unresolvable image reference", "rid", rid, "error", err)
		return doctree.ImageBlock(rid, nil)
	}
	name := strings.TrimPrefix(path.Clean("word/"+target), docx.MEDIA_FOLDER)
	m := s.doc.Media(name)
	if m == nil || len(m.Data) == 0 {
		s.log.Warn("image media missing", "rid", rid, "target", target)
		return doctree.ImageBlock(rid, nil)
	}
	return doctree.ImageBlock(name, m.Data)
}

// table expands horizontally merged cells (w:gridSpan) so every row covers
// the full grid, repeating the merged text in each column it spans.
func (s *DOCXStream) table(tbl *docx.Table) (*doctree.Table, error) {
	cols := 0
	if tbl.TableGrid != nil {
		cols = len(tbl.TableGrid.GridCols)
	}
	grid := make([][]string, 0, len(tbl.TableRows))
	for _, row := range tbl.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			text := cellText(cell)
			span := 1
			if p := cell.TableCellProperties; p != nil && p.GridSpan != nil && p.GridSpan.Val > 1 {
				span = p.GridSpan.Val
			}
			for range span {
				cells = append(cells, text)
			}
		}
		cols = max(cols, len(cells))
		grid = append(grid, cells)
	}

	flat := make([]string, 0, len(grid)*cols)
	for _, row := range grid {
		flat = append(flat, row...)
		for range cols - len(row) {
			flat = append(flat, "")
		}
	}
	return table.Normalize(flat, len(grid), cols)
}

// Media returns every embedded media part keyed by its name under word/media.
func (s *DOCXStream) Media() map[string][]byte {
	out := make(map[string][]byte)
	for b := range s.Blocks() {
		if b.Kind == doctree.KindImage && len(b.Image) > 0 {
			out[b.Ref] = b.Image
		}
	}
	return out
}

func cellText(cell *docx.WTableCell) string {
	parts := make([]string, 0, len(cell.Paragraphs))
	for _, p := range cell.Paragraphs {
		parts = append(parts, paragraphText(p))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			runText(&buf, c)
		case *docx.Hyperlink:
			runText(&buf, &c.Run)
		}
	}
	return strings.TrimSpace(buf.String())
}

func runText(buf *strings.Builder, run *docx.Run) {
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			buf.WriteString(t.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte('\n')
		}
	}
}

// drawingRefs lists the picture relationship ids in a paragraph, in order.
func drawingRefs(para *docx.Paragraph) []string {
	var refs []string
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			d, ok := rc.(*docx.Drawing)
			if !ok {
				continue
			}
			var g *docx.AGraphic
			switch {
			case d.Inline != nil:
				g = d.Inline.Graphic
			case d.Anchor != nil:
				g = d.Anchor.Graphic
			}
			if g == nil || g.GraphicData == nil || g.GraphicData.Pic == nil || g.GraphicData.Pic.BlipFill == nil {
				continue
			}
			refs = append(refs, g.GraphicData.Pic.BlipFill.Blip.Embed)
		}
	}
	return refs
}

const relationshipsNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// vmlImageRefs finds legacy VML pictures (v:imagedata r:id) in
// word/document.xml, keyed by the position of the enclosing paragraph among
// the body children go-docx keeps (p, tbl, sectPr). Fallback content of
// mc:AlternateContent is ignored; its DrawingML choice is read already.
func vmlImageRefs(zr *zip.Reader) map[int][]string {
	refs := make(map[int][]string)
	data, err := zipPart(zr, "word/document.xml")
	if err != nil {
		return refs
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	depth, bodyDepth, fallback := 0, -1, 0
	item, inPara := -1, false
	for {
		tok, err := d.Token()
		if err != nil {
			return refs
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case bodyDepth < 0:
				if t.Name.Local == "body" {
					bodyDepth = depth
				}
			case depth == bodyDepth+1:
				switch t.Name.Local {
				case "p", "tbl", "sectPr":
					item++
					inPara = t.Name.Local == "p"
				default:
					inPara = false
				}
			case t.Name.Local == "Fallback":
				fallback++
			case t.Name.Local == "imagedata" && inPara && fallback == 0:
				for _, a := range t.Attr {
					if a.Name.Local == "id" && (a.Name.Space == relationshipsNS || a.Name.Space == "r") {
						refs[item] = append(refs[item], a.Value)
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "Fallback" && fallback > 0 {
				fallback--
			}
			depth--
		}
	}
}
