package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/valyala/fastjson"
)

var ErrSchema = errors.New("reading schema")

const (
	keyProperties  = "properties"
	keyRequired    = "required"
	keyDefinitions = "definitions"
	keyWeight      = "weight"
	keyItems       = "items"
	keyRef         = "$ref"
)

// Property is a field declared either at the top level of the schema or inside
// a definition.
type Property struct {
	Name string
	// Weight is the explicit "weight" of the property, if it declares one.
	Weight *float64
	// Ref is the property's own "$ref", if any.
	Ref string
	// HasItems records whether the property declares "items", meaning the
	// field holds a sequence.
	HasItems bool
	// ItemsRef is the "$ref" inside "items", if any.
	ItemsRef string
}

// Definition is a named entry of the schema's "definitions".
type Definition struct {
	Name       string
	Weight     *float64
	Properties []Property
}

// Document is the subset of a JSON schema needed to derive field weights.
type Document struct {
	Properties  []Property
	Required    map[string]bool
	Definitions map[string]*Definition
}

// Parse reads a schema document. The document must declare "properties",
// "required", and "definitions".
func Parse(data []byte) (*Document, error) {
	v, err := fastjson.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrSchema, err)
	}

	propertiesValue, err := member(v, keyProperties)
	if err != nil {
		return nil, err
	}
	properties, err := parseProperties(propertiesValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchema, keyProperties, err)
	}

	requiredValue, err := member(v, keyRequired)
	if err != nil {
		return nil, err
	}
	requiredValues, err := requiredValue.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchema, keyRequired, err)
	}
	required := make(map[string]bool, len(requiredValues))
	for _, r := range requiredValues {
		name, err := r.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSchema, keyRequired, err)
		}
		required[string(name)] = true
	}

	definitionsValue, err := member(v, keyDefinitions)
	if err != nil {
		return nil, err
	}
	definitionsObject, err := definitionsValue.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchema, keyDefinitions, err)
	}

	definitions := make(map[string]*Definition, definitionsObject.Len())
	var visitErr error
	definitionsObject.Visit(func(key []byte, dv *fastjson.Value) {
		if visitErr != nil {
			return
		}
		name := string(key)
		definition := &Definition{Name: name}
		definition.Weight, visitErr = weight(dv)
		if visitErr != nil {
			visitErr = fmt.Errorf("definition %q: %w", name, visitErr)
			return
		}
		if pv := dv.Get(keyProperties); pv != nil {
			definition.Properties, visitErr = parseProperties(pv)
			if visitErr != nil {
				visitErr = fmt.Errorf("definition %q: %w", name, visitErr)
				return
			}
		}
		definitions[name] = definition
	})
	if visitErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchema, keyDefinitions, visitErr)
	}

	doc := &Document{
		Properties:  properties,
		Required:    required,
		Definitions: definitions,
	}
	if err := doc.checkRefs(); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkRefs resolves every reference in the document, including those of
// definitions no property expands.
func (d *Document) checkRefs() error {
	check := func(owner string, properties []Property) error {
		for _, p := range properties {
			for _, ref := range []string{p.Ref, p.ItemsRef} {
				if ref == "" {
					continue
				}
				if _, err := d.Resolve(ref); err != nil {
					return fmt.Errorf("%s%s: %w", owner, p.Name, err)
				}
			}
		}
		return nil
	}

	if err := check("", d.Properties); err != nil {
		return err
	}

	names := make([]string, 0, len(d.Definitions))
	for name := range d.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := check(name+".", d.Definitions[name].Properties); err != nil {
			return err
		}
	}
	return nil
}

func member(v *fastjson.Value, key string) (*fastjson.Value, error) {
	m := v.Get(key)
	if m == nil {
		return nil, fmt.Errorf("%w: missing %q", ErrSchema, key)
	}
	return m, nil
}

func parseProperties(v *fastjson.Value) ([]Property, error) {
	o, err := v.Object()
	if err != nil {
		return nil, err
	}

	var properties []Property
	var visitErr error
	o.Visit(func(key []byte, pv *fastjson.Value) {
		if visitErr != nil {
			return
		}
		property := Property{Name: string(key)}
		property.Weight, visitErr = weight(pv)
		if visitErr != nil {
			visitErr = fmt.Errorf("property %q: %w", property.Name, visitErr)
			return
		}
		property.Ref = string(pv.GetStringBytes(keyRef))
		if items := pv.Get(keyItems); items != nil {
			property.HasItems = true
			property.ItemsRef = string(items.GetStringBytes(keyRef))
		}
		properties = append(properties, property)
	})

	return properties, visitErr
}

func weight(v *fastjson.Value) (*float64, error) {
	w := v.Get(keyWeight)
	if w == nil {
		return nil, nil
	}
	f, err := w.Float64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyWeight, err)
	}
	return &f, nil
}

// Resolve returns the definition a "$ref" points to. References name
// definitions by their final path segment, as in "#/definitions/Organization".
func (d *Document) Resolve(ref string) (*Definition, error) {
	name := ref[strings.LastIndex(ref, "/")+1:]
	definition, ok := d.Definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: unresolvable %s %q", ErrSchema, keyRef, ref)
	}
	return definition, nil
}
