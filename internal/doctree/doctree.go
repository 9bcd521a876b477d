package doctree

import (
	"iter"
	"slices"
)

// BlockKind tags which payload a Block carries.
type BlockKind int

const (
	KindText BlockKind = iota
	KindTable
	KindImage
)

func (k BlockKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTable:
		return "table"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// Block is one block-level element in document order. Exactly one payload
// field is meaningful, selected by Kind.
type Block struct {
	Kind  BlockKind
	Style string // Style name as the source reports it ("Heading 2", "Normal", ...)
	Text  string
	Table *Table
	Image []byte
	Ref   string // Source reference for images (relationship id or media path)
}

// TextBlock returns a text block with the given style.
func TextBlock(style, text string) Block {
	return Block{Kind: KindText, Style: style, Text: text}
}

// TableBlock returns a table block.
func TableBlock(t *Table) Block {
	return Block{Kind: KindTable, Table: t}
}

// ImageBlock returns an image block. An empty payload marks an image whose
// content could not be resolved.
func ImageBlock(ref string, data []byte) Block {
	return Block{Kind: KindImage, Ref: ref, Image: data}
}

// Stream is a restartable, read-only sequence of blocks from one document.
type Stream interface {
	Title() string
	Blocks() iter.Seq[Block]
}

// SliceStream is a Stream over blocks already in memory.
type SliceStream struct {
	Name  string
	Items []Block
}

func (s *SliceStream) Title() string { return s.Name }

func (s *SliceStream) Blocks() iter.Seq[Block] {
	return slices.Values(s.Items)
}

// Table is a normalized table: one header row and data rows of equal width.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cols returns the table width.
func (t *Table) Cols() int {
	return len(t.Header)
}

// Flatten returns the table as a row-major cell list with its shape.
func (t *Table) Flatten() (cells []string, rows, cols int) {
	cols = len(t.Header)
	rows = len(t.Rows) + 1
	cells = make([]string, 0, rows*cols)
	cells = append(cells, t.Header...)
	for _, r := range t.Rows {
		cells = append(cells, r...)
	}
	return cells, rows, cols
}

// Triple is one subject-predicate-object statement about document structure.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// CatalogEntry is one numbered heading in the outline.
type CatalogEntry struct {
	Chapter string   `json:"chapter"` // e.g. "2.1.3"
	Title   string   `json:"title"`
	Level   int      `json:"level"`
	Path    []string `json:"path"` // Heading titles from level 1 down to this entry
}

// Role is the structural role a style maps to.
type Role int

const (
	RoleBody Role = iota
	RoleHeading
	RoleCaption
	RoleListItem
)

func (r Role) String() string {
	switch r {
	case RoleHeading:
		return "heading"
	case RoleCaption:
		return "caption"
	case RoleListItem:
		return "list_item"
	}
	return "body"
}

// Element is a block placed in the outline.
type Element struct {
	Block Block
	Role  Role
	Level int // Heading level for headings, enclosing level otherwise
}

// Ambiguity records a place where the block sequence did not fit the
// outline and a best-effort placement was used.
type Ambiguity struct {
	Index  int    `json:"index"` // Block index in the stream
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Ambiguity kinds.
const (
	AmbiguityLevelJump            = "level_jump"
	AmbiguityCaptionBeforeHeading = "caption_before_heading"
)

// Result is the full structural reconstruction of one document.
type Result struct {
	Name        string         `json:"name"`
	Elements    []Element      `json:"-"`
	Triples     []Triple       `json:"triples"`
	Catalog     []CatalogEntry `json:"catalog"`
	Ambiguities []Ambiguity    `json:"ambiguities,omitempty"`
}

// Headings returns the heading elements in document order.
func (r *Result) Headings() []Element {
	var out []Element
	for _, e := range r.Elements {
		if e.Role == RoleHeading {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies elements by block kind.
func (r *Result) Counts() map[string]int {
	counts := make(map[string]int, 3)
	for _, e := range r.Elements {
		counts[e.Block.Kind.String()]++
	}
	return counts
}
