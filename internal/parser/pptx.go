package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/style"
	"github.com/dgallion1/docgraph/internal/table"
)

// PPTXParser handles .pptx files.
type PPTXParser struct {
	Logger *slog.Logger
}

func (p *PPTXParser) Parse(r io.Reader, filename string) (doctree.Stream, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, unavailable(filename, err)
	}
	return OpenPPTX(data, filename, p.Logger)
}

// ShapeKind tags the content of a slide shape.
type ShapeKind string

const (
	ShapeText    ShapeKind = "text"
	ShapePicture ShapeKind = "picture"
	ShapeTable   ShapeKind = "table"
)

// TextRun is a run of text with its font size in points. FontSize is 0 when
// the size is inherited from the layout.
type TextRun struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size,omitempty"`
}

// Shape is one shape on a slide.
type Shape struct {
	Kind        ShapeKind      `json:"kind"`
	Placeholder string         `json:"placeholder,omitempty"`
	Paragraphs  [][]TextRun    `json:"paragraphs,omitempty"`
	ImageRef    string         `json:"image_ref,omitempty"`
	Image       []byte         `json:"-"`
	Table       *doctree.Table `json:"table,omitempty"`
}

// Text joins the shape's paragraphs with newlines.
func (s Shape) Text() string {
	lines := make([]string, 0, len(s.Paragraphs))
	for _, p := range s.Paragraphs {
		lines = append(lines, paragraphRunsText(p))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsTitle reports whether the shape is a slide title placeholder.
func (s Shape) IsTitle() bool {
	return s.Placeholder == "title" || s.Placeholder == "ctrTitle"
}

// Slide is one slide in presentation order.
type Slide struct {
	Number int     `json:"number"`
	Shapes []Shape `json:"shapes"`
}

// PPTXStream holds the shapes of a presentation.
type PPTXStream struct {
	title  string
	slides []Slide
}

// OpenPPTX parses a presentation held in memory.
func OpenPPTX(data []byte, filename string, logger *slog.Logger) (*PPTXStream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("file", filename)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unavailable(filename, fmt.Errorf("open pptx package: %w", err))
	}
	order, err := slideOrder(zr)
	if err != nil {
		return nil, unavailable(filename, err)
	}

	s := &PPTXStream{title: coreTitle(zr)}
	if s.title == "" {
		s.title = baseTitle(filename)
	}
	for i, part := range order {
		slide, err := readSlide(zr, part, log)
		if err != nil {
			// One broken slide does not sink the deck.
			log.Warn("skipping unreadable slide", "slide", i+1, "part", part, "error", err)
			continue
		}
		slide.Number = i + 1
		s.slides = append(s.slides, slide)
	}
	return s, nil
}

func (s *PPTXStream) Title() string { return s.title }

// Slides returns the slides in presentation order.
func (s *PPTXStream) Slides() []Slide { return s.slides }

// Blocks flattens the slides: title placeholders become level 1 headings,
// other text frames become one body block per paragraph.
func (s *PPTXStream) Blocks() iter.Seq[doctree.Block] {
	return func(yield func(doctree.Block) bool) {
		for _, slide := range s.slides {
			for _, sh := range slide.Shapes {
				for _, b := range shapeBlocks(sh) {
					if !yield(b) {
						return
					}
				}
			}
		}
	}
}

func shapeBlocks(sh Shape) []doctree.Block {
	switch sh.Kind {
	case ShapePicture:
		return []doctree.Block{doctree.ImageBlock(sh.ImageRef, sh.Image)}
	case ShapeTable:
		return []doctree.Block{doctree.TableBlock(sh.Table)}
	}
	if sh.IsTitle() {
		if t := sh.Text(); t != "" {
			return []doctree.Block{doctree.TextBlock(style.Heading(1), t)}
		}
		return nil
	}
	var out []doctree.Block
	for _, p := range sh.Paragraphs {
		if t := strings.TrimSpace(paragraphRunsText(p)); t != "" {
			out = append(out, doctree.TextBlock(style.Normal, t))
		}
	}
	return out
}

func paragraphRunsText(runs []TextRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// slideOrder returns slide part names in presentation order.
func slideOrder(zr *zip.Reader) ([]string, error) {
	data, err := zipPart(zr, "ppt/presentation.xml")
	if err != nil {
		return nil, err
	}
	var pres struct {
		IDs []struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sldIdLst>sldId"`
	}
	if err := xml.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation.xml: %w", err)
	}
	rels, err := relationships(zr, "ppt/_rels/presentation.xml.rels")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pres.IDs))
	for _, id := range pres.IDs {
		if r, ok := rels[id.RID]; ok {
			out = append(out, r.Target)
		}
	}
	return out, nil
}

// OOXML slide structure, reduced to what block extraction needs.
type (
	xmlNode struct {
		XMLName  xml.Name
		NvSpPr   *xmlNvPr   `xml:"nvSpPr"`
		TxBody   *xmlTxBody `xml:"txBody"`
		BlipFill *struct {
			Blip struct {
				Embed string `xml:"embed,attr"`
			} `xml:"blip"`
		} `xml:"blipFill"`
		Graphic *struct {
			Data struct {
				Tbl *xmlTable `xml:"tbl"`
			} `xml:"graphicData"`
		} `xml:"graphic"`
		Children []xmlNode `xml:",any"`
	}
	xmlNvPr struct {
		NvPr struct {
			Ph *struct {
				Type string `xml:"type,attr"`
			} `xml:"ph"`
		} `xml:"nvPr"`
	}
	xmlTxBody struct {
		Paras []struct {
			Runs []struct {
				Props *struct {
					Size int `xml:"sz,attr"`
				} `xml:"rPr"`
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	}
	xmlTable struct {
		Rows []struct {
			Cells []struct {
				TxBody xmlTxBody `xml:"txBody"`
			} `xml:"tc"`
		} `xml:"tr"`
	}
)

func readSlide(zr *zip.Reader, part string, log *slog.Logger) (Slide, error) {
	data, err := zipPart(zr, part)
	if err != nil {
		return Slide{}, err
	}
	var doc struct {
		Tree xmlNode `xml:"cSld>spTree"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Slide{}, fmt.Errorf("parse %s: %w", part, err)
	}

	dir, file := part[:strings.LastIndex(part, "/")+1], part[strings.LastIndex(part, "/")+1:]
	rels, err := relationships(zr, dir+"_rels/"+file+".rels")
	if err != nil {
		rels = map[string]relationship{}
	}

	var slide Slide
	var walk func(nodes []xmlNode)
	walk = func(nodes []xmlNode) {
		for _, n := range nodes {
			switch n.XMLName.Local {
			case "sp":
				if n.TxBody == nil {
					continue
				}
				sh := Shape{Kind: ShapeText, Paragraphs: textRuns(n.TxBody)}
				if n.NvSpPr != nil && n.NvSpPr.NvPr.Ph != nil {
					sh.Placeholder = n.NvSpPr.NvPr.Ph.Type
					if sh.Placeholder == "" {
						sh.Placeholder = "body"
					}
				}
				slide.Shapes = append(slide.Shapes, sh)
			case "pic":
				if n.BlipFill == nil {
					continue
				}
				slide.Shapes = append(slide.Shapes, pictureShape(zr, rels, n.BlipFill.Blip.Embed, log))
			case "graphicFrame":
				if n.Graphic == nil || n.Graphic.Data.Tbl == nil {
					continue
				}
				t, err := slideTable(n.Graphic.Data.Tbl)
				if err != nil {
					log.Warn("skipping malformed slide table", "part", part, "error", err)
					continue
				}
				if len(t.Rows) == 0 {
					log.Debug("skipping slide table without data rows", "part", part)
					continue
				}
				slide.Shapes = append(slide.Shapes, Shape{Kind: ShapeTable, Table: t})
			case "grpSp":
				walk(n.Children)
			}
		}
	}
	walk(doc.Tree.Children)
	return slide, nil
}

func textRuns(body *xmlTxBody) [][]TextRun {
	out := make([][]TextRun, 0, len(body.Paras))
	for _, p := range body.Paras {
		runs := make([]TextRun, 0, len(p.Runs))
		for _, r := range p.Runs {
			run := TextRun{Text: r.Text}
			if r.Props != nil && r.Props.Size > 0 {
				run.FontSize = float64(r.Props.Size) / 100
			}
			runs = append(runs, run)
		}
		out = append(out, runs)
	}
	return out
}

func pictureShape(zr *zip.Reader, rels map[string]relationship, rid string, log *slog.Logger) Shape {
	sh := Shape{Kind: ShapePicture, ImageRef: rid}
	r, ok := rels[rid]
	if !ok {
		log.Warn("unresolvable picture reference", "rid", rid)
		return sh
	}
	data, err := zipPart(zr, r.Target)
	if err != nil {
		log.Warn("picture media missing", "rid", rid, "target", r.Target, "error", err)
		return sh
	}
	sh.ImageRef = r.Target
	sh.Image = data
	return sh
}

func slideTable(t *xmlTable) (*doctree.Table, error) {
	rows := len(t.Rows)
	cols := 0
	var cells []string
	for i, row := range t.Rows {
		if i == 0 {
			cols = len(row.Cells)
		}
		for _, c := range row.Cells {
			lines := make([]string, 0, len(c.TxBody.Paras))
			for _, p := range textRuns(&c.TxBody) {
				lines = append(lines, paragraphRunsText(p))
			}
			cells = append(cells, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return table.Normalize(cells, rows, cols)
}
