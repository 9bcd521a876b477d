package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/style"
	"github.com/dgallion1/docgraph/internal/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (doctree.Stream, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, unavailable(filename, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	s := &doctree.SliceStream{Name: baseTitle(filename)}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		s.Items = append(s.Items, markdownBlocks(n, src)...)
	}
	return s, nil
}

func markdownBlocks(n ast.Node, src []byte) []doctree.Block {
	switch node := n.(type) {
	case *ast.Heading:
		return []doctree.Block{doctree.TextBlock(style.Heading(node.Level), extractText(node, src))}

	case *ast.List:
		var out []doctree.Block
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if t := extractText(item, src); t != "" {
				out = append(out, doctree.TextBlock(style.ListBullet, t))
			}
		}
		return out

	case *east.Table:
		t, err := markdownTable(node, src)
		if err != nil {
			return nil
		}
		return []doctree.Block{doctree.TableBlock(t)}

	case *ast.Paragraph:
		// Images in a paragraph come first, the same way Word inline
		// pictures do. Remote images carry no payload.
		var out []doctree.Block
		_ = ast.Walk(node, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
			if img, ok := c.(*ast.Image); ok && entering {
				out = append(out, doctree.ImageBlock(string(img.Destination), nil))
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		})
		if t := extractText(node, src); t != "" {
			out = append(out, doctree.TextBlock(style.Normal, t))
		}
		return out
	}

	if t := extractText(n, src); t != "" {
		return []doctree.Block{doctree.TextBlock(style.Normal, t)}
	}
	return nil
}

func markdownTable(t *east.Table, src []byte) (*doctree.Table, error) {
	var records [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var rec []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			rec = append(rec, extractText(cell, src))
		}
		records = append(records, rec)
	}
	return table.FromRecords(records)
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.Image:
			// Alt text belongs to the image block.
		default:
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
