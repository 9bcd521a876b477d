// Package table turns raw cell grids into normalized tables.
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

var (
	ErrShapeMismatch = errors.New("table shape mismatch")
	ErrTooFewRows    = errors.New("table has too few rows")
)

// Normalize builds a table from row-major cell texts. The first row becomes
// the header, fully empty data rows are dropped and exact duplicate rows are
// collapsed to their first occurrence.
func Normalize(cells []string, rows, cols int) (*doctree.Table, error) {
	if rows < 0 || cols < 0 || rows*cols != len(cells) {
		return nil, fmt.Errorf("%w: %d rows x %d cols != %d cells", ErrShapeMismatch, rows, cols, len(cells))
	}
	if rows < 2 {
		return nil, fmt.Errorf("%w: %d", ErrTooFewRows, rows)
	}

	t := &doctree.Table{
		Header: append([]string(nil), cells[:cols]...),
	}
	seen := make(map[string]bool, rows)
	for r := 1; r < rows; r++ {
		row := cells[r*cols : (r+1)*cols]
		if isEmpty(row) {
			continue
		}
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		t.Rows = append(t.Rows, append([]string(nil), row...))
	}
	return t, nil
}

// FromRecords normalizes a ragged record list, padding short rows to the
// widest one.
func FromRecords(records [][]string) (*doctree.Table, error) {
	cols := 0
	for _, r := range records {
		cols = max(cols, len(r))
	}
	cells := make([]string, 0, len(records)*cols)
	for _, r := range records {
		cells = append(cells, r...)
		for i := len(r); i < cols; i++ {
			cells = append(cells, "")
		}
	}
	return Normalize(cells, len(records), cols)
}

func isEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// rowKey joins cells with a separator that cannot appear in document text.
func rowKey(row []string) string {
	return strings.Join(row, "\x00")
}
