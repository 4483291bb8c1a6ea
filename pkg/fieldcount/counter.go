package fieldcount

import (
	"io"
	"strings"
)

// DefaultWrapper is the envelope key of 360Giving data packages, whose grants
// are the elements of the top-level "grants" array.
const DefaultWrapper = "grants"

// Vector holds the number of scalar values found at each normalized field path
// of one document.
type Vector map[string]int64

// Total is the number of scalar values counted in the document.
func (v Vector) Total() int64 {
	var total int64
	for _, n := range v {
		total += n
	}
	return total
}

// Counter counts field occurrences in record documents.
type Counter struct {
	// Wrapper is the top-level key whose sequence holds the records. Its
	// "<wrapper>.item" envelope is stripped from field paths.
	Wrapper string
}

// Normalize maps an event location onto a field path. The records envelope and
// every sequence element marker are dropped so that repeated entries share one
// path: "grants.item.recipientOrganization.item.name" becomes
// "recipientOrganization.name".
func (c Counter) Normalize(path []Segment) string {
	start := 0
	if c.Wrapper != "" && len(path) > 2 &&
		!path[0].Item && path[0].Key == c.Wrapper && path[1].Item {
		start = 2
	}

	var sb strings.Builder
	for _, s := range path[start:] {
		if s.Item {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Key)
	}
	return sb.String()
}

// Count streams one document and counts its scalar values per normalized
// path. The document is never held in memory as a whole.
func (c Counter) Count(r io.Reader) (Vector, error) {
	result := make(Vector)
	for event, err := range Events(r) {
		if err != nil {
			return nil, err
		}
		if !event.Kind.IsValue() {
			continue
		}
		result[c.Normalize(event.Path)]++
	}
	return result, nil
}
