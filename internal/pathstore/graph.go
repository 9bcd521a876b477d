package pathstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Root is the key prefix all docgraph documents live under.
const Root = "docgraph/documents"

// DocumentPrefix returns the key prefix for one document.
func DocumentPrefix(docID string) string {
	return Root + "/" + docID
}

// Meta describes the stored document.
type Meta struct {
	DocID       string
	Filename    string
	ContentHash string
	CreatedAt   time.Time
}

// Op is one write against the store: a node put when Link is nil,
// otherwise a link put.
type Op struct {
	Key  string
	Node NodeRequest
	Link *LinkRequest
}

// Apply performs a single write.
func (c *Client) Apply(ctx context.Context, op Op) error {
	if op.Link != nil {
		return c.PutLink(ctx, *op.Link)
	}
	return c.PutNode(ctx, op.Key, op.Node)
}

// Plan lays a Result out as graph writes. Every distinct triple term becomes
// one node under the document prefix and every distinct triple becomes one
// link labelled with its predicate. Catalog entries are stored in order
// under catalog/. Node writes come before the links that reference them and
// the meta node comes last.
func Plan(res *doctree.Result, meta Meta) []Op {
	prefix := DocumentPrefix(meta.DocID)
	source := "docgraph:" + meta.DocID

	var nodes, links []Op
	seenNode := make(map[string]bool)
	node := func(text string) string {
		key := NodeKey(prefix, text)
		if !seenNode[key] {
			seenNode[key] = true
			nodes = append(nodes, Op{Key: key, Node: NodeRequest{
				Value:      map[string]any{"text": text},
				MemoryType: "semantic",
				Salience:   0.5,
				Source:     source,
			}})
		}
		return key
	}

	seenLink := make(map[doctree.Triple]bool)
	for _, t := range res.Triples {
		if seenLink[t] {
			continue
		}
		seenLink[t] = true
		from, to := node(t.Subject), node(t.Object)
		links = append(links, Op{Link: &LinkRequest{
			From:    from,
			To:      to,
			Weight:  1,
			Summary: t.Predicate,
		}})
	}

	ops := append(nodes, links...)
	for i, e := range res.Catalog {
		ops = append(ops, Op{
			Key: fmt.Sprintf("%s/catalog/%04d", prefix, i+1),
			Node: NodeRequest{
				Value: map[string]any{
					"chapter": e.Chapter,
					"title":   e.Title,
					"level":   e.Level,
					"path":    e.Path,
				},
				MemoryType: "metacognitive",
				Salience:   0.3,
				Source:     source,
			},
		})
	}

	ops = append(ops, Op{
		Key: prefix + "/meta",
		Node: NodeRequest{
			Value: map[string]any{
				"filename":     meta.Filename,
				"title":        res.Name,
				"content_hash": meta.ContentHash,
				"triples":      len(res.Triples),
				"catalog":      len(res.Catalog),
				"created_at":   meta.CreatedAt.Format(time.RFC3339),
			},
			MemoryType: "metacognitive",
			Salience:   0.5,
			Source:     source,
		},
	})
	return ops
}

// NodeKey returns the key of the node holding text. The slug keeps keys
// readable; the hash suffix keeps distinct texts apart after truncation.
func NodeKey(prefix, text string) string {
	sum := sha256.Sum256([]byte(text))
	slug := Slugify(text)
	if slug == "" {
		slug = "node"
	}
	return prefix + "/nodes/" + slug + "-" + hex.EncodeToString(sum[:4])
}

var (
	nonSlug  = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL/path-safe slug of at most 50 bytes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}
