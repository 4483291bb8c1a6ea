package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
)

// MaxEnum is the largest number of unique values to track before not trying to
// interpret the field as an enum.
const MaxEnum = 20

// Field summarizes the scalar values found at one field path.
type Field interface {
	// Add records a value event and returns the field which should replace
	// the receiver. A field stays typed until it receives a value of another
	// kind, at which point it becomes a MixedField.
	Add(kind fieldcount.Kind, value any) (Field, error)
	String() string
}

// EmptyField represents a field which only ever held null.
type EmptyField struct {
	Nulls int64
}

func (f *EmptyField) Add(kind fieldcount.Kind, value any) (Field, error) {
	var next Field
	switch kind {
	case fieldcount.Null:
		f.Nulls++
		return f, nil
	case fieldcount.Boolean:
		next = &BoolField{Nulls: f.Nulls}
	case fieldcount.Number:
		next = &NumberField{Nulls: f.Nulls, Seen: make(map[float64]int64)}
	case fieldcount.String:
		next = &StringField{Nulls: f.Nulls, Seen: make(map[string]int64)}
	default:
		return nil, fmt.Errorf("%w: %s is not a value", ErrProfile, kind)
	}
	return next.Add(kind, value)
}

func (f *EmptyField) String() string {
	return fmt.Sprintf("empty;null:%d", f.Nulls)
}

// BoolField only ever holds JSON booleans.
type BoolField struct {
	True, False, Nulls int64
}

func (f *BoolField) Add(kind fieldcount.Kind, value any) (Field, error) {
	switch kind {
	case fieldcount.Null:
		f.Nulls++
		return f, nil
	case fieldcount.Boolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: boolean event with %T value", ErrProfile, value)
		}
		if b {
			f.True++
		} else {
			f.False++
		}
		return f, nil
	default:
		return mix(f, kind, f.True+f.False)
	}
}

func (f *BoolField) String() string {
	return fmt.Sprintf("boolean;true:%d;false:%d;null:%d", f.True, f.False, f.Nulls)
}

// NumberField only holds JSON numbers. It tracks the properties of the
// numbers seen to determine the narrowest type holding all of them.
type NumberField struct {
	// Integral tracks if all instances of this field are integers.
	Integral bool
	// Float32 tracks if all instances of this field fit in a 32-bit float
	// without loss of precision.
	Float32 bool

	Min, Max float64
	Count    int64
	Nulls    int64

	// Seen counts unique numbers, for detecting enumerated fields. It stops
	// collecting once it holds more than MaxEnum entries.
	Seen map[float64]int64
}

func (f *NumberField) Add(kind fieldcount.Kind, value any) (Field, error) {
	switch kind {
	case fieldcount.Null:
		f.Nulls++
		return f, nil
	case fieldcount.Number:
	default:
		return mix(f, kind, f.Count)
	}

	n, ok := value.(json.Number)
	if !ok {
		return nil, fmt.Errorf("%w: number event with %T value", ErrProfile, value)
	}
	// Numbers beyond the float64 range are kept as ±Inf.
	o, err := strconv.ParseFloat(n.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("%w: number %q: %w", ErrProfile, n, err)
	}

	if f.Count > 0 {
		f.Integral = f.Integral && isIntegral(o)
		f.Float32 = f.Float32 && isFloat32(o)
		f.Min = math.Min(f.Min, o)
		f.Max = math.Max(f.Max, o)
	} else {
		f.Integral = isIntegral(o)
		f.Float32 = isFloat32(o)
		f.Min = o
		f.Max = o
	}
	f.Count++

	if len(f.Seen) <= MaxEnum {
		f.Seen[o]++
	}
	return f, nil
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && math.Round(f) == f
}

const (
	Float64FractionLength = 52
	Float32FractionLength = 23
	Float64Mask           = (1 << (Float64FractionLength - Float32FractionLength)) - 1
)

// isFloat32 reports whether f uses none of the float64-only fraction bits.
// Exponents outside the float32 range are not considered.
func isFloat32(f float64) bool {
	if math.IsInf(f, 0) {
		return false
	}
	return math.Float64bits(f)&Float64Mask == 0
}

func (f *NumberField) typeName() string {
	if !f.Integral {
		if f.Float32 {
			return "float32"
		}
		return "float64"
	}

	if f.Min < 0 {
		switch {
		case f.Min >= math.MinInt8 && f.Max <= math.MaxInt8:
			return "int8"
		case f.Min >= math.MinInt16 && f.Max <= math.MaxInt16:
			return "int16"
		case f.Min >= math.MinInt32 && f.Max <= math.MaxInt32:
			return "int32"
		default:
			return "int64"
		}
	}

	switch {
	case f.Max <= math.MaxUint8:
		return "uint8"
	case f.Max <= math.MaxUint16:
		return "uint16"
	case f.Max <= math.MaxUint32:
		return "uint32"
	default:
		return "uint64"
	}
}

func (f *NumberField) format(v float64) string {
	if f.Integral {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (f *NumberField) String() string {
	result := strings.Builder{}
	result.WriteString(f.typeName())
	fmt.Fprintf(&result, ";min:%s;max:%s;null:%d", f.format(f.Min), f.format(f.Max), f.Nulls)

	if len(f.Seen) <= MaxEnum {
		values := make([]float64, 0, len(f.Seen))
		for v := range f.Seen {
			values = append(values, v)
		}
		sort.Float64s(values)
		for _, v := range values {
			fmt.Fprintf(&result, ";%s:%d", f.format(v), f.Seen[v])
		}
	}

	return result.String()
}

// StringField only holds JSON strings.
type StringField struct {
	Count int64
	Nulls int64
	// Seen attempts to determine if the field is actually an enum with a
	// small number of unique values.
	Seen map[string]int64
}

func (f *StringField) Add(kind fieldcount.Kind, value any) (Field, error) {
	switch kind {
	case fieldcount.Null:
		f.Nulls++
		return f, nil
	case fieldcount.String:
	default:
		return mix(f, kind, f.Count)
	}

	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: string event with %T value", ErrProfile, value)
	}
	f.Count++
	if len(f.Seen) <= MaxEnum {
		f.Seen[s]++
	}
	return f, nil
}

func (f *StringField) String() string {
	if len(f.Seen) > MaxEnum {
		return fmt.Sprintf("string;count:%d;null:%d", f.Count, f.Nulls)
	}

	keys := make([]string, 0, len(f.Seen))
	for k := range f.Seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := strings.Builder{}
	fmt.Fprintf(&result, "enum;%d;null:%d", len(f.Seen), f.Nulls)
	for _, k := range keys {
		fmt.Fprintf(&result, ";%q:%d", k, f.Seen[k])
	}
	return result.String()
}

// MixedField holds values of more than one kind, for example amounts written
// sometimes as numbers and sometimes as strings.
type MixedField struct {
	Kinds map[fieldcount.Kind]int64
}

// mix converts a typed field which has seen count values of its own kind into
// a MixedField and adds the new value.
func mix(from Field, kind fieldcount.Kind, count int64) (Field, error) {
	m := &MixedField{Kinds: make(map[fieldcount.Kind]int64)}
	switch f := from.(type) {
	case *BoolField:
		m.Kinds[fieldcount.Boolean] = count
		m.Kinds[fieldcount.Null] = f.Nulls
	case *NumberField:
		m.Kinds[fieldcount.Number] = count
		m.Kinds[fieldcount.Null] = f.Nulls
	case *StringField:
		m.Kinds[fieldcount.String] = count
		m.Kinds[fieldcount.Null] = f.Nulls
	}
	return m.Add(kind, nil)
}

func (f *MixedField) Add(kind fieldcount.Kind, _ any) (Field, error) {
	if !kind.IsValue() {
		return nil, fmt.Errorf("%w: %s is not a value", ErrProfile, kind)
	}
	f.Kinds[kind]++
	return f, nil
}

func (f *MixedField) String() string {
	result := strings.Builder{}
	result.WriteString("mixed")
	for _, kind := range []fieldcount.Kind{fieldcount.Boolean, fieldcount.Number, fieldcount.String, fieldcount.Null} {
		fmt.Fprintf(&result, ";%s:%d", kind, f.Kinds[kind])
	}
	return result.String()
}
