package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Delimiter is the path separator used for field paths throughout the reports.
const Delimiter = "."

var ErrFlatten = errors.New("flattening record")

// Record maps a delimited field path to the scalar found at that path.
type Record map[string]any

// Flatten turns a nested value of mappings and sequences into a single-level
// Record.
//
// Mapping keys extend the path. The elements of a sequence are flattened
// independently and merged under the same parent key without an index, so when
// two elements produce the same path the later element wins. This is lossy:
// {"a":[{"b":1},{"b":2}]} flattens to {"a.b": 2}.
//
// A scalar at the top level is stored under the empty path.
func Flatten(v any, delimiter string) (Record, error) {
	result := make(Record)
	err := flattenInto(result, "", v, delimiter)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func flattenInto(result Record, path string, v any, delimiter string) error {
	switch o := v.(type) {
	case map[string]any:
		for k, child := range o {
			err := flattenInto(result, join(path, k, delimiter), child, delimiter)
			if err != nil {
				return err
			}
		}
	case Record:
		return flattenInto(result, path, map[string]any(o), delimiter)
	case []any:
		for _, elem := range o {
			err := flattenInto(result, path, elem, delimiter)
			if err != nil {
				return err
			}
		}
	default:
		if !IsScalar(o) {
			return fmt.Errorf("%w: unsupported type %T at %q", ErrFlatten, o, path)
		}
		result[path] = o
	}

	return nil
}

func join(path, key, delimiter string) string {
	if path == "" {
		return key
	}
	return path + delimiter + key
}

// IsScalar reports whether v is a JSON-compatible atomic value.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, json.Number,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// String renders a flattened scalar the way it appears in the source JSON, so
// values can be written into text columns. A nil value reports false.
func String(v any) (string, bool) {
	switch o := v.(type) {
	case nil:
		return "", false
	case string:
		return o, true
	case bool:
		if o {
			return "true", true
		}
		return "false", true
	case json.Number:
		return o.String(), true
	case float64:
		return strconv.FormatFloat(o, 'f', -1, 64), true
	default:
		return fmt.Sprint(o), true
	}
}
