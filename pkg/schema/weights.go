package schema

import (
	"fmt"
	"sort"
)

// Optionality weights. Lower sorts earlier in reports.
const (
	Required    = 0.0
	Recommended = 50.0
	Optional    = 100.0
)

const (
	// childScale keeps expanded children sorted immediately after, and in
	// order within, their parent.
	childScale = 1000.0

	definitionParentWeight = 99.0
	defaultParentWeight    = 100.0
	definitionChildWeight  = 0.099
	defaultChildWeight     = 0.1
)

// Row is one field reachable from the schema together with its ordering keys.
type Row struct {
	// Path is the delimited field path, unique within a table of rows.
	Path string
	// Parent is the top-level property the field belongs to. For top-level
	// leaves this is the field itself.
	Parent         string
	ParentWeight   float64
	Weight         float64
	OptionalWeight float64
}

// weightTier is one step of a weight fallback chain. It reports false if it
// does not apply.
type weightTier func() (float64, bool)

func firstTier(tiers ...weightTier) float64 {
	for _, tier := range tiers {
		if w, ok := tier(); ok {
			return w
		}
	}
	// Every chain ends in a constant tier.
	panic("weight chain without a default")
}

func explicit(w *float64, scale float64) weightTier {
	return func() (float64, bool) {
		if w == nil {
			return 0, false
		}
		return *w / scale, true
	}
}

func definitionWeight(d *Definition, scale float64) weightTier {
	return func() (float64, bool) {
		if d == nil || d.Weight == nil {
			return 0, false
		}
		return *d.Weight / scale, true
	}
}

func definitionExists(w float64, ds ...*Definition) weightTier {
	return func() (float64, bool) {
		for _, d := range ds {
			if d != nil {
				return w, true
			}
		}
		return 0, false
	}
}

func constant(w float64) weightTier {
	return func() (float64, bool) {
		return w, true
	}
}

// OptionalityWeight classifies a top-level property. Required takes
// precedence over recommended, which takes precedence over optional.
func OptionalityWeight(name string, required, recommended map[string]bool) float64 {
	switch {
	case required[name]:
		return Required
	case recommended[name]:
		return Recommended
	default:
		return Optional
	}
}

// Weights derives one Row for every field reachable from the schema's
// top-level properties, sorted with Sort.
//
// A property is expanded into one row per sub-property when its "items"
// references a definition that declares properties. Every other property is
// a leaf with its own row.
func Weights(doc *Document, recommended []string) ([]Row, error) {
	recommendedSet := make(map[string]bool, len(recommended))
	for _, r := range recommended {
		recommendedSet[r] = true
	}

	var rows []Row
	seen := make(map[string]bool)
	add := func(row Row) error {
		if seen[row.Path] {
			return fmt.Errorf("%w: duplicate field path %q", ErrSchema, row.Path)
		}
		seen[row.Path] = true
		rows = append(rows, row)
		return nil
	}

	for _, property := range doc.Properties {
		optionalWeight := OptionalityWeight(property.Name, doc.Required, recommendedSet)

		referenced, err := doc.references(property)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", property.Name, err)
		}
		named := doc.Definitions[property.Name]
		items, err := doc.itemsDefinition(property)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", property.Name, err)
		}

		parentWeight := optionalWeight + firstTier(
			explicit(property.Weight, 1),
			definitionWeight(named, 1),
			definitionWeight(referenced, 1),
			definitionExists(definitionParentWeight, named, referenced),
			constant(defaultParentWeight),
		)

		if items == nil || len(items.Properties) == 0 {
			err = add(Row{
				Path:           property.Name,
				Parent:         property.Name,
				ParentWeight:   parentWeight,
				Weight:         parentWeight,
				OptionalWeight: optionalWeight,
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		for _, child := range items.Properties {
			childReferenced, err := doc.references(child)
			if err != nil {
				return nil, fmt.Errorf("property %q: child %q: %w", property.Name, child.Name, err)
			}
			childNamed := doc.Definitions[child.Name]

			err = add(Row{
				Path:         property.Name + "." + child.Name,
				Parent:       property.Name,
				ParentWeight: parentWeight,
				Weight: firstTier(
					explicit(child.Weight, childScale),
					definitionWeight(childNamed, childScale),
					definitionWeight(childReferenced, childScale),
					definitionExists(definitionChildWeight, childNamed, childReferenced),
					constant(defaultChildWeight),
				),
				OptionalWeight: optionalWeight,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	Sort(rows)
	return rows, nil
}

// references returns the definition named by the property's "$ref", or by its
// "items.$ref" if it has no direct reference. Returns nil if the property
// references nothing.
func (d *Document) references(p Property) (*Definition, error) {
	for _, ref := range []string{p.Ref, p.ItemsRef} {
		if ref == "" {
			continue
		}
		return d.Resolve(ref)
	}
	return nil, nil
}

func (d *Document) itemsDefinition(p Property) (*Definition, error) {
	if !p.HasItems || p.ItemsRef == "" {
		return nil, nil
	}
	return d.Resolve(p.ItemsRef)
}

// Less orders rows by parent weight, then parent, then weight, then path.
func Less(a, b Row) bool {
	if a.ParentWeight != b.ParentWeight {
		return a.ParentWeight < b.ParentWeight
	}
	if a.Parent != b.Parent {
		return a.Parent < b.Parent
	}
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return a.Path < b.Path
}

// Sort sorts rows in report order.
func Sort(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		return Less(rows[i], rows[j])
	})
}

// Index keys rows by path.
func Index(rows []Row) map[string]Row {
	result := make(map[string]Row, len(rows))
	for _, row := range rows {
		result[row.Path] = row
	}
	return result
}
