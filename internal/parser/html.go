package parser

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/style"
	"github.com/dgallion1/docgraph/internal/table"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (doctree.Stream, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, unavailable(filename, err)
	}

	s := &doctree.SliceStream{Name: baseTitle(filename)}
	if title := findTitle(doc); title != "" {
		s.Name = title
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if t := textContent(n); t != "" {
					s.Items = append(s.Items, doctree.TextBlock(style.Heading(level), t))
				}
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "blockquote":
				// Inline images keep their position ahead of the text.
				for _, img := range findAll(n, "img") {
					s.Items = append(s.Items, htmlImage(img))
				}
				if t := textContent(n); t != "" {
					s.Items = append(s.Items, doctree.TextBlock(style.Normal, t))
				}
				return
			case "li":
				if t := textContent(n); t != "" {
					s.Items = append(s.Items, doctree.TextBlock(style.ListBullet, t))
				}
				return
			case "figcaption", "caption":
				if t := textContent(n); t != "" {
					s.Items = append(s.Items, doctree.TextBlock(style.Caption, t))
				}
				return
			case "img":
				s.Items = append(s.Items, htmlImage(n))
				return
			case "table":
				// A caption element precedes the table block.
				for _, c := range findAll(n, "caption") {
					if t := textContent(c); t != "" {
						s.Items = append(s.Items, doctree.TextBlock(style.Caption, t))
					}
				}
				if t, err := htmlTable(n); err == nil {
					s.Items = append(s.Items, doctree.TableBlock(t))
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return s, nil
}

func htmlTable(n *html.Node) (*doctree.Table, error) {
	var records [][]string
	for _, tr := range findAll(n, "tr") {
		var rec []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				rec = append(rec, textContent(c))
			}
		}
		records = append(records, rec)
	}
	return table.FromRecords(records)
}

// htmlImage decodes base64 data URIs; other sources carry no payload.
func htmlImage(n *html.Node) doctree.Block {
	src := attr(n, "src")
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		if meta, data, ok := strings.Cut(rest, ","); ok && strings.HasSuffix(meta, ";base64") {
			if b, err := base64.StdEncoding.DecodeString(data); err == nil {
				return doctree.ImageBlock(strings.TrimSuffix(meta, ";base64"), b)
			}
		}
		return doctree.ImageBlock("data", nil)
	}
	return doctree.ImageBlock(src, nil)
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll returns descendants of n with the given tag, in document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
