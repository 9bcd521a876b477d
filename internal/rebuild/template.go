package rebuild

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
)

const templateName = "default"

// templateFS serves the go-docx default template with the core properties
// and style sheet replaced.
type templateFS struct {
	base  fs.FS
	parts map[string][]byte
}

func newTemplate(title string) (*templateFS, error) {
	styles, err := fs.ReadFile(docx.TemplateXMLFS, "xml/"+templateName+"/word/styles.xml")
	if err != nil {
		return nil, fmt.Errorf("read template styles: %w", err)
	}
	return &templateFS{
		base: docx.TemplateXMLFS,
		parts: map[string][]byte{
			"xml/" + templateName + "/docProps/core.xml": coreXML(title),
			"xml/" + templateName + "/word/styles.xml":   withOutlineStyles(styles),
		},
	}, nil
}

func (t *templateFS) Open(name string) (fs.File, error) {
	data, ok := t.parts[name]
	if !ok {
		return t.base.Open(name)
	}
	return &memFile{Reader: bytes.NewReader(data), name: path.Base(name), size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Size() int64                { return f.size }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }

func coreXML(title string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	b.WriteString("<dc:title>")
	_ = xml.EscapeText(&b, []byte(title))
	b.WriteString("</dc:title><dc:creator>docgraph</dc:creator></cp:coreProperties>")
	return b.Bytes()
}

// withOutlineStyles adds the paragraph styles the rebuilder references. The
// default template only defines Normal and a handful of table styles.
func withOutlineStyles(styles []byte) []byte {
	var extra strings.Builder
	paraStyle := func(id, name, ppr, rpr string) {
		fmt.Fprintf(&extra,
			`<w:style w:type="paragraph" w:styleId="%s"><w:name w:val="%s"/><w:basedOn w:val="a"/><w:next w:val="a"/><w:qFormat/>%s%s</w:style>`,
			id, name, ppr, rpr)
	}

	paraStyle("Title", "Title", `<w:pPr><w:jc w:val="center"/></w:pPr>`, `<w:rPr><w:b/><w:sz w:val="52"/></w:rPr>`)
	paraStyle(headingStyleID(0), "Heading", `<w:pPr><w:keepNext/></w:pPr>`, `<w:rPr><w:b/></w:rPr>`)
	for level := 1; level <= 9; level++ {
		paraStyle(headingStyleID(level), fmt.Sprintf("heading %d", level),
			fmt.Sprintf(`<w:pPr><w:keepNext/><w:outlineLvl w:val="%d"/></w:pPr>`, level-1),
			`<w:rPr><w:b/></w:rPr>`)
	}
	paraStyle("ListBullet", "List Bullet", `<w:pPr><w:ind w:left="360" w:hanging="360"/></w:pPr>`, "")
	paraStyle("Caption", "caption", "", `<w:rPr><w:i/><w:sz w:val="18"/></w:rPr>`)

	return bytes.Replace(styles, []byte("</w:styles>"), []byte(extra.String()+"</w:styles>"), 1)
}

func headingStyleID(level int) string {
	return fmt.Sprintf("Heading%d", level)
}
