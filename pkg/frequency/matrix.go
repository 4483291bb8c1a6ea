package frequency

import (
	"sort"
	"sync"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
)

// Matrix holds field occurrence counts with one row per field path and one
// column per document identifier. It is the element-wise sum of the document
// vectors added to it.
type Matrix struct {
	columns map[string]bool
	cells   map[string]map[string]int64
}

func NewMatrix() *Matrix {
	return &Matrix{
		columns: make(map[string]bool),
		cells:   make(map[string]map[string]int64),
	}
}

// FromVector creates a single-column matrix.
func FromVector(id string, v fieldcount.Vector) *Matrix {
	m := NewMatrix()
	m.add(id, v)
	return m
}

func (m *Matrix) add(id string, v fieldcount.Vector) {
	m.columns[id] = true
	for path, n := range v {
		row := m.cells[path]
		if row == nil {
			row = make(map[string]int64)
			m.cells[path] = row
		}
		row[id] += n
	}
}

func (m *Matrix) addMatrix(o *Matrix) {
	for id := range o.columns {
		m.columns[id] = true
	}
	for path, row := range o.cells {
		for id, n := range row {
			if m.cells[path] == nil {
				m.cells[path] = make(map[string]int64)
			}
			m.cells[path][id] += n
		}
	}
}

// Add returns a new matrix with the document's vector summed in. The receiver
// is unchanged.
func (m *Matrix) Add(id string, v fieldcount.Vector) *Matrix {
	return Merge(m, FromVector(id, v))
}

// Merge returns the element-wise sum of two matrices without modifying either.
// Merge is associative and commutative.
func Merge(a, b *Matrix) *Matrix {
	result := NewMatrix()
	result.addMatrix(a)
	result.addMatrix(b)
	return result
}

// Columns lists document identifiers, sorted.
func (m *Matrix) Columns() []string {
	columns := make([]string, 0, len(m.columns))
	for id := range m.columns {
		columns = append(columns, id)
	}
	sort.Strings(columns)
	return columns
}

// Paths lists observed field paths, sorted.
func (m *Matrix) Paths() []string {
	paths := make([]string, 0, len(m.cells))
	for path := range m.cells {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Count returns the number of occurrences of path in a document. Reports false
// if the document never contained the path.
func (m *Matrix) Count(path, id string) (int64, bool) {
	n, ok := m.cells[path][id]
	return n, ok
}

// Accumulator folds document vectors into a running matrix. It is safe for
// concurrent use.
type Accumulator struct {
	mu     sync.Mutex
	matrix *Matrix
}

func NewAccumulator() *Accumulator {
	return &Accumulator{matrix: NewMatrix()}
}

// Add sums one document's vector into the running matrix.
func (a *Accumulator) Add(id string, v fieldcount.Vector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matrix.add(id, v)
}

// Matrix returns a copy of the running matrix.
func (a *Accumulator) Matrix() *Matrix {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Merge(NewMatrix(), a.matrix)
}
