// Package style maps paragraph style names to structural roles.
//
// The mapping is driven by a Vocabulary so that documents using house style
// names can be supported by configuration alone.
package style

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"gopkg.in/yaml.v3"
)

// Canonical style names produced by the non-Word sources and the rebuilder.
const (
	Normal     = "Normal"
	ListBullet = "List Bullet"
	Caption    = "Caption"
)

// Heading returns the canonical style name for a heading level.
func Heading(level int) string {
	if level <= 0 {
		return "Heading"
	}
	return "Heading " + strconv.Itoa(level)
}

// Vocabulary is the declarative style table.
type Vocabulary struct {
	// Aliases rewrite a style name before any other rule applies.
	Aliases map[string]string `yaml:"aliases"`
	// Captions are style names treated as figure/table captions.
	Captions []string `yaml:"captions"`
	// HeadingPrefix introduces numbered headings ("Heading 2", "Heading2").
	// The prefix alone is the title-attached heading.
	HeadingPrefix string `yaml:"heading_prefix"`
	// ListPrefix marks list item styles.
	ListPrefix string `yaml:"list_prefix"`
	// MaxLevel caps accepted heading levels; deeper numbers classify as body.
	MaxLevel int `yaml:"max_level"`
}

// Default returns the built-in vocabulary.
func Default() Vocabulary {
	return Vocabulary{
		Aliases: map[string]string{
			"List abc double line":    ListBullet,
			"List number single line": ListBullet,
		},
		Captions:      []string{"Caption", "CaptionFigure"},
		HeadingPrefix: "Heading",
		ListPrefix:    "List",
		MaxLevel:      9,
	}
}

// LoadVocabulary reads a YAML vocabulary file and merges it over Default.
// Aliases are added to the defaults; other non-empty fields replace them.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary: %w", err)
	}
	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return v, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	for from, to := range file.Aliases {
		v.Aliases[from] = to
	}
	if len(file.Captions) > 0 {
		v.Captions = file.Captions
	}
	if file.HeadingPrefix != "" {
		v.HeadingPrefix = file.HeadingPrefix
	}
	if file.ListPrefix != "" {
		v.ListPrefix = file.ListPrefix
	}
	if file.MaxLevel > 0 {
		v.MaxLevel = file.MaxLevel
	}
	return v, nil
}

// Class is the outcome of classifying one style name.
type Class struct {
	Role  doctree.Role
	Level int    // Heading level; 0 for the title-attached heading and non-headings
	Style string // Style name after alias resolution
}

// Classifier applies a Vocabulary. All lookups ignore case. It holds no
// per-document state and is safe for concurrent use.
type Classifier struct {
	vocab    Vocabulary
	aliases  map[string]string // keyed by lower-case style name
	captions map[string]bool
}

// New returns a Classifier for v.
func New(v Vocabulary) *Classifier {
	c := &Classifier{
		vocab:    v,
		aliases:  make(map[string]string, len(v.Aliases)),
		captions: make(map[string]bool, len(v.Captions)),
	}
	for from, to := range v.Aliases {
		c.aliases[strings.ToLower(from)] = to
	}
	for _, name := range v.Captions {
		c.captions[strings.ToLower(name)] = true
	}
	return c
}

// Classify maps a style name to its role. Every input maps to some role.
func (c *Classifier) Classify(name string) Class {
	name = strings.TrimSpace(name)
	if alias, ok := c.aliases[strings.ToLower(name)]; ok {
		name = alias
	}

	if level, ok := c.headingLevel(name); ok {
		return Class{Role: doctree.RoleHeading, Level: level, Style: name}
	}
	if c.captions[strings.ToLower(name)] {
		return Class{Role: doctree.RoleCaption, Style: name}
	}
	if hasPrefixFold(name, c.vocab.ListPrefix) {
		return Class{Role: doctree.RoleListItem, Style: name}
	}
	return Class{Role: doctree.RoleBody, Style: name}
}

func hasPrefixFold(s, prefix string) bool {
	return prefix != "" && len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// headingLevel accepts "Heading", "Heading 3", "Heading3" and the lower-case
// forms Word writes into styles.xml ("heading 3").
func (c *Classifier) headingLevel(name string) (int, bool) {
	prefix := c.vocab.HeadingPrefix
	if !hasPrefixFold(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	if rest == "" {
		return 0, true
	}
	rest = strings.TrimPrefix(rest, " ")
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	if c.vocab.MaxLevel > 0 && n > c.vocab.MaxLevel {
		return 0, false
	}
	return n, true
}
