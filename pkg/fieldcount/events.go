package fieldcount

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

var ErrParse = errors.New("parsing document")

// Kind is the type of a streaming parse event.
type Kind int

const (
	StartMap Kind = iota
	MapKey
	EndMap
	StartArray
	EndArray
	Null
	Boolean
	Number
	String
)

var kindNames = [...]string{
	StartMap:   "start_map",
	MapKey:     "map_key",
	EndMap:     "end_map",
	StartArray: "start_array",
	EndArray:   "end_array",
	Null:       "null",
	Boolean:    "boolean",
	Number:     "number",
	String:     "string",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsValue reports whether the event carries a scalar value, as opposed to
// structure or a key.
func (k Kind) IsValue() bool {
	return k >= Null
}

// ItemMarker is the prefix segment denoting an element of a sequence.
const ItemMarker = "item"

// Segment is one step of an event's location: either a mapping key or an
// element of a sequence.
type Segment struct {
	Key  string
	Item bool
}

func (s Segment) String() string {
	if s.Item {
		return ItemMarker
	}
	return s.Key
}

// Event is one step of a streaming traversal.
type Event struct {
	// Path locates the event. It is shared between events and is only valid
	// until the iteration advances; copy it to retain it.
	Path  []Segment
	Kind  Kind
	Value any
}

// Prefix renders the event's location with "." separators and "item" for
// sequence elements, such as "grants.item.recipientOrganization.item.name".
func (e Event) Prefix() string {
	parts := make([]string, len(e.Path))
	for i, s := range e.Path {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

type frame struct {
	array     bool
	expectKey bool
}

// Events traverses one JSON document token by token without holding the
// parsed document in memory. Exactly one top-level value is allowed. A
// malformed, empty, or truncated document ends the iteration with an error
// wrapping ErrParse.
func Events(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		decoder := json.NewDecoder(r)
		decoder.UseNumber()

		var path []Segment
		var stack []frame
		started := false

		fail := func(err error) {
			yield(Event{}, fmt.Errorf("%w: %w", ErrParse, err))
		}

		// afterValue steps past a completed value.
		afterValue := func() {
			if len(stack) == 0 {
				return
			}
			top := &stack[len(stack)-1]
			if !top.array {
				path = path[:len(path)-1]
				top.expectKey = true
			}
		}

		for {
			if started && len(stack) == 0 {
				// The top-level value is complete.
				_, err := decoder.Token()
				switch {
				case errors.Is(err, io.EOF):
				case err != nil:
					fail(err)
				default:
					fail(errors.New("trailing data after top-level value"))
				}
				return
			}

			token, err := decoder.Token()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if !started {
						err = errors.New("empty document")
					} else {
						err = io.ErrUnexpectedEOF
					}
				}
				fail(err)
				return
			}
			started = true

			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				if top.expectKey {
					if delim, ok := token.(json.Delim); ok && delim == '}' {
						stack = stack[:len(stack)-1]
						if !yield(Event{Path: path, Kind: EndMap}, nil) {
							return
						}
						afterValue()
						continue
					}

					key, ok := token.(string)
					if !ok {
						fail(fmt.Errorf("expected key, got %v", token))
						return
					}
					if !yield(Event{Path: path, Kind: MapKey, Value: key}, nil) {
						return
					}
					path = append(path, Segment{Key: key})
					top.expectKey = false
					continue
				}
			}

			var event Event
			switch t := token.(type) {
			case json.Delim:
				switch t {
				case '{':
					event = Event{Path: path, Kind: StartMap}
					if !yield(event, nil) {
						return
					}
					stack = append(stack, frame{expectKey: true})
					continue
				case '[':
					event = Event{Path: path, Kind: StartArray}
					if !yield(event, nil) {
						return
					}
					stack = append(stack, frame{array: true})
					path = append(path, Segment{Item: true})
					continue
				case ']':
					stack = stack[:len(stack)-1]
					path = path[:len(path)-1]
					event = Event{Path: path, Kind: EndArray}
				default:
					fail(fmt.Errorf("unexpected delimiter %v", t))
					return
				}
			case nil:
				event = Event{Path: path, Kind: Null}
			case bool:
				event = Event{Path: path, Kind: Boolean, Value: t}
			case json.Number:
				event = Event{Path: path, Kind: Number, Value: t}
			case string:
				event = Event{Path: path, Kind: String, Value: t}
			default:
				fail(fmt.Errorf("unexpected token %T", t))
				return
			}

			if !yield(event, nil) {
				return
			}
			afterValue()
		}
	}
}
