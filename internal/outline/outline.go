// Package outline reconstructs heading structure from a flat block stream.
//
// A single pass produces three views of the same walk: the element record,
// the triple stream and the numbered catalog.
package outline

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/style"
)

// PredicateCaption is the predicate for caption triples.
const PredicateCaption = "Caption"

// HeadingPredicate returns the predicate for an object at the given level.
func HeadingPredicate(level int) string {
	return "Heading " + strconv.Itoa(level)
}

// Builder walks block streams. It keeps no state between Build calls.
type Builder struct {
	classifier *style.Classifier
	logger     *slog.Logger
}

// New returns a Builder. A nil logger uses slog.Default.
func New(c *style.Classifier, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{classifier: c, logger: logger}
}

// state is everything one conversion mutates.
type state struct {
	// path[L] is the most recent heading at level L; path[0] is the title.
	// len(path) == level+1 at all times.
	path   []string
	level  int
	anchor string

	// Catalog counters and titles indexed by level; index 0 is unused.
	counter []int
	content []string

	res *doctree.Result
}

// Build runs the walk over s.
func (b *Builder) Build(s doctree.Stream) *doctree.Result {
	title := s.Title()
	st := &state{
		path:    []string{title},
		anchor:  title,
		counter: []int{0},
		content: []string{""},
		res:     &doctree.Result{Name: title},
	}

	i := 0
	for blk := range s.Blocks() {
		b.step(st, i, blk)
		i++
	}

	for _, a := range st.res.Ambiguities {
		b.logger.Debug("structural ambiguity", "doc", title, "index", a.Index, "kind", a.Kind, "detail", a.Detail)
	}
	return st.res
}

func (b *Builder) step(st *state, idx int, blk doctree.Block) {
	if blk.Kind != doctree.KindText {
		st.res.Elements = append(st.res.Elements, doctree.Element{
			Block: blk,
			Role:  doctree.RoleBody,
			Level: st.level,
		})
		return
	}

	text := strings.TrimSpace(blk.Text)
	if text == "" {
		return
	}
	blk.Text = text

	class := b.classifier.Classify(blk.Style)
	blk.Style = class.Style
	el := doctree.Element{Block: blk, Role: class.Role, Level: st.level}

	switch class.Role {
	case doctree.RoleHeading:
		if class.Level == 0 {
			st.emit(st.path[0], HeadingPredicate(0), text)
			st.path[0] = text
			st.anchor = text
			el.Level = 0
			break
		}
		el.Level = b.heading(st, idx, class.Level, text)

	case doctree.RoleCaption:
		if st.level == 0 {
			st.ambiguity(idx, doctree.AmbiguityCaptionBeforeHeading,
				fmt.Sprintf("caption %q precedes any heading", text))
			st.emit(st.anchor, HeadingPredicate(1), text)
			break
		}
		st.emit(st.path[st.level], PredicateCaption, text)

	default:
		if st.level == 0 {
			st.emit(st.anchor, HeadingPredicate(1), text)
			break
		}
		st.emit(st.path[st.level], HeadingPredicate(st.level+1), text)
	}

	st.res.Elements = append(st.res.Elements, el)
}

// heading places a leveled heading and returns the level it was placed at.
// A heading more than one level below its predecessor is placed one level
// below it.
func (b *Builder) heading(st *state, idx, level int, text string) int {
	if level > st.level+1 {
		st.ambiguity(idx, doctree.AmbiguityLevelJump,
			fmt.Sprintf("heading %q jumps from level %d to %d, placed at %d", text, st.level, level, st.level+1))
		level = st.level + 1
	}

	st.emit(st.path[level-1], HeadingPredicate(level), text)
	st.path = append(st.path[:level], text)

	st.catalog(level, text)
	st.level = level
	return level
}

// catalog advances the chapter counters for a heading at level and records
// the entry. level is at most st.level+1.
func (st *state) catalog(level int, text string) {
	switch {
	case level == st.level+1:
		st.counter = append(st.counter[:level], 1)
		st.content = append(st.content[:level], text)
	default:
		// Same level or shallower: bump this level and forget deeper ones.
		st.counter = st.counter[:level+1]
		st.content = st.content[:level+1]
		st.counter[level]++
		st.content[level] = text
	}

	parts := make([]string, 0, level)
	for _, n := range st.counter[1:] {
		if n != 0 {
			parts = append(parts, strconv.Itoa(n))
		}
	}
	st.res.Catalog = append(st.res.Catalog, doctree.CatalogEntry{
		Chapter: strings.Join(parts, "."),
		Title:   text,
		Level:   level,
		Path:    append([]string(nil), st.content[1:]...),
	})
}

func (st *state) emit(subject, predicate, object string) {
	st.res.Triples = append(st.res.Triples, doctree.Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	})
}

func (st *state) ambiguity(idx int, kind, detail string) {
	st.res.Ambiguities = append(st.res.Ambiguities, doctree.Ambiguity{
		Index:  idx,
		Kind:   kind,
		Detail: detail,
	})
}
