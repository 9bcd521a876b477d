package parser

import (
	"encoding/csv"
	"io"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/table"
)

// CSVParser handles CSV files. The whole file is one table whose first
// record is the header.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (doctree.Stream, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, unavailable(filename, err)
	}

	s := &doctree.SliceStream{Name: baseTitle(filename)}
	if t, err := table.FromRecords(records); err == nil {
		s.Items = append(s.Items, doctree.TableBlock(t))
	}
	return s, nil
}
