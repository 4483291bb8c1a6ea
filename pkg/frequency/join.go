package frequency

import (
	"errors"
	"fmt"
	"sort"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
	"github.com/willbeason/state-of-the-data/pkg/metadata"
	"github.com/willbeason/state-of-the-data/pkg/schema"
)

var ErrAggregation = errors.New("aggregating field frequencies")

// Row is one field of the frequency table.
type Row struct {
	Path string
	// Schema holds the field's weights, or nil if the schema does not declare
	// the field.
	Schema *schema.Row
	// Counts is aligned with the table's columns. It is nil if no document
	// contained the field. Documents lacking an otherwise observed field count
	// zero.
	Counts []int64
}

// InSchema reports whether the schema declares the field.
func (r Row) InSchema() bool {
	return r.Schema != nil
}

// Table is the weighted frequency table.
type Table struct {
	// Columns are the document identifiers.
	Columns []string
	Rows    []Row
}

// Join outer-joins observed field counts with schema rows on path and sorts
// the result. Fields declared by the schema sort by parent weight, parent,
// weight and path; fields absent from the schema follow, sorted by path.
func Join(m *Matrix, rows []schema.Row) *Table {
	columns := m.Columns()
	index := schema.Index(rows)

	paths := m.Paths()
	for _, row := range rows {
		if _, observed := m.cells[row.Path]; !observed {
			paths = append(paths, row.Path)
		}
	}

	result := &Table{Columns: columns, Rows: make([]Row, len(paths))}
	for i, path := range paths {
		row := Row{Path: path}
		if schemaRow, ok := index[path]; ok {
			row.Schema = &schemaRow
		}
		if cells, observed := m.cells[path]; observed {
			row.Counts = make([]int64, len(columns))
			for j, id := range columns {
				row.Counts[j] = cells[id]
			}
		}
		result.Rows[i] = row
	}

	sort.Slice(result.Rows, func(i, j int) bool {
		return less(result.Rows[i], result.Rows[j])
	})
	return result
}

func less(a, b Row) bool {
	switch {
	case a.Schema != nil && b.Schema != nil:
		return schema.Less(*a.Schema, *b.Schema)
	case a.Schema != nil:
		return true
	case b.Schema != nil:
		return false
	default:
		return a.Path < b.Path
	}
}

// Lookup finds the context attributes of a document.
type Lookup interface {
	Lookup(id string) (metadata.Row, bool)
}

// MetadataRows returns the context attributes of every document column, in
// column order. Every document must have a metadata entry.
func MetadataRows(m *Matrix, lookup Lookup) ([]metadata.Row, error) {
	columns := m.Columns()
	rows := make([]metadata.Row, len(columns))
	for i, id := range columns {
		row, ok := lookup.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: no metadata for document %q", ErrAggregation, id)
		}
		rows[i] = row
	}
	return rows, nil
}

// Reduce folds per-document vectors into the joined frequency table and the
// per-document metadata rows.
func Reduce(vectors map[string]fieldcount.Vector, rows []schema.Row, lookup Lookup) (*Table, []metadata.Row, error) {
	m := NewMatrix()
	for id, v := range vectors {
		m.add(id, v)
	}

	metadataRows, err := MetadataRows(m, lookup)
	if err != nil {
		return nil, nil, err
	}

	return Join(m, rows), metadataRows, nil
}
