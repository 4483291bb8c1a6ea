package profile

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
)

var ErrProfile = errors.New("profiling field values")

// Profiler accumulates a value profile per normalized field path across
// documents. It is not safe for concurrent use.
type Profiler struct {
	Counter fieldcount.Counter

	fields map[string]Field
}

func NewProfiler(wrapper string) *Profiler {
	return &Profiler{
		Counter: fieldcount.Counter{Wrapper: wrapper},
		fields:  make(map[string]Field),
	}
}

// Profile streams one document into the profile. On error the profile may
// hold part of the document.
func (p *Profiler) Profile(r io.Reader) error {
	for event, err := range fieldcount.Events(r) {
		if err != nil {
			return err
		}
		if !event.Kind.IsValue() {
			continue
		}

		path := p.Counter.Normalize(event.Path)
		field, ok := p.fields[path]
		if !ok {
			field = &EmptyField{}
		}
		field, err = field.Add(event.Kind, event.Value)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrProfile, path, err)
		}
		p.fields[path] = field
	}
	return nil
}

// Paths returns the profiled field paths in order.
func (p *Profiler) Paths() []string {
	paths := make([]string, 0, len(p.fields))
	for path := range p.fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Field returns the profile of one path.
func (p *Profiler) Field(path string) (Field, bool) {
	f, ok := p.fields[path]
	return f, ok
}

// WriteTo writes one "path;profile" line per field, sorted by path.
func (p *Profiler) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, path := range p.Paths() {
		n, err := fmt.Fprintf(w, "%s;%s\n", path, p.fields[path])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
