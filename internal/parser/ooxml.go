package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// OOXML package helpers shared by the Word and PowerPoint sources.

func zipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// coreTitle returns dc:title from docProps/core.xml, or "" when absent.
func coreTitle(zr *zip.Reader) string {
	data, err := zipPart(zr, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var core struct {
		Title string `xml:"http://purl.org/dc/elements/1.1/ title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
	Mode   string `xml:"TargetMode,attr"`
}

// relationships reads a .rels part and resolves internal targets to
// archive paths relative to the part's source directory.
func relationships(zr *zip.Reader, relsPath string) (map[string]relationship, error) {
	data, err := zipPart(zr, relsPath)
	if err != nil {
		return nil, err
	}
	var rels struct {
		Items []relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relsPath, err)
	}

	// ppt/slides/_rels/slide1.xml.rels -> ppt/slides
	base := path.Dir(path.Dir(relsPath))
	out := make(map[string]relationship, len(rels.Items))
	for _, r := range rels.Items {
		if r.Mode != "External" {
			if strings.HasPrefix(r.Target, "/") {
				r.Target = strings.TrimPrefix(r.Target, "/")
			} else {
				r.Target = path.Join(base, r.Target)
			}
		}
		out[r.ID] = r
	}
	return out, nil
}

// styleNames maps w:styleId to the UI style name from word/styles.xml.
// Word stores built-in names in lower case ("heading 1", "caption"); those
// are mapped to their display form.
func styleNames(zr *zip.Reader) map[string]string {
	names := make(map[string]string)
	data, err := zipPart(zr, "word/styles.xml")
	if err != nil {
		return names
	}
	var styles struct {
		Items []struct {
			ID   string `xml:"styleId,attr"`
			Name struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	if err := xml.Unmarshal(data, &styles); err != nil {
		return names
	}
	for _, s := range styles.Items {
		if s.ID == "" || s.Name.Val == "" {
			continue
		}
		names[s.ID] = displayStyleName(s.Name.Val)
	}
	return names
}

var builtinStyleNames = map[string]string{
	"caption":  "Caption",
	"footer":   "Footer",
	"header":   "Header",
	"title":    "Title",
	"subtitle": "Subtitle",
	"normal":   "Normal",
}

func displayStyleName(name string) string {
	lower := strings.ToLower(name)
	if n, ok := builtinStyleNames[lower]; ok {
		return n
	}
	if rest, ok := strings.CutPrefix(lower, "heading "); ok {
		return "Heading " + rest
	}
	return name
}
