package metadata

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/willbeason/bondsmith/jsonio"
	"github.com/willbeason/state-of-the-data/pkg/flatten"
)

var ErrDataIntegrity = errors.New("checking summary integrity")

// DefaultIdentifier is the field of each summary entry naming the record
// document it describes.
const DefaultIdentifier = "identifier"

// Flattened summary keys of the per-document attributes reported alongside
// field frequencies.
const (
	KeyPublisher  = "publisher.name"
	KeyDownloaded = "datagetter_metadata.datetime_downloaded"
	KeyLicense    = "datagetter_metadata.acceptable_license"
	KeyPrefix     = "publisher.prefix"
	KeyTitle      = "distribution.title"
	KeyType       = "datagetter_metadata.file_type"
	KeyValid      = "datagetter_metadata.valid"
)

// Row holds the context attributes of one record document.
type Row struct {
	Identifier string
	Publisher  string
	Downloaded string
	License    *bool
	Prefix     string
	Title      string
	Type       string
	Valid      *bool
}

// Table is a corpus summary with one flattened entry per document identifier.
type Table struct {
	identifier string
	ids        []string
	records    map[string]flatten.Record
}

// Extract reads a corpus summary and flattens each entry. The summary may be a
// JSON array of entries, a single entry, or a stream of newline-delimited
// entries. Every entry must carry a unique identifier.
func Extract(r io.Reader, identifier string) (*Table, error) {
	table := &Table{
		identifier: identifier,
		records:    make(map[string]flatten.Record),
	}

	reader := bufio.NewReader(r)
	first, err := peek(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading summary: %w", ErrDataIntegrity, err)
	}

	if first == '[' {
		err = table.readArray(reader)
	} else {
		err = table.readStream(reader)
	}
	if err != nil {
		return nil, err
	}

	return table, nil
}

// peek returns the first non-whitespace byte without consuming it.
func peek(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

func (t *Table) readArray(r io.Reader) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	// Opening bracket.
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("%w: reading summary: %w", ErrDataIntegrity, err)
	}

	for decoder.More() {
		var entry any
		if err := decoder.Decode(&entry); err != nil {
			return fmt.Errorf("%w: decoding summary entry %d: %w", ErrDataIntegrity, len(t.ids), err)
		}
		if err := t.add(entry); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("%w: reading summary: %w", ErrDataIntegrity, err)
	}
	return nil
}

func (t *Table) readStream(r io.Reader) error {
	entries := jsonio.NewReader(r, func() *map[string]json.RawMessage {
		v := make(map[string]json.RawMessage)
		return &v
	})

	for entry, err := range entries.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: decoding summary entry %d: %w", ErrDataIntegrity, len(t.ids), err)
		}
		decoded, err := decodeNumbers(*entry)
		if err != nil {
			return fmt.Errorf("%w: decoding summary entry %d: %w", ErrDataIntegrity, len(t.ids), err)
		}
		if err := t.add(decoded); err != nil {
			return err
		}
	}
	return nil
}

// decodeNumbers decodes the members of a streamed entry keeping numbers as
// json.Number, as array summaries do.
func decodeNumbers(entry map[string]json.RawMessage) (map[string]any, error) {
	result := make(map[string]any, len(entry))
	for key, raw := range entry {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()

		var value any
		if err := decoder.Decode(&value); err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}

func (t *Table) add(entry any) error {
	record, err := flatten.Flatten(entry, flatten.Delimiter)
	if err != nil {
		return fmt.Errorf("summary entry %d: %w", len(t.ids), err)
	}

	id, ok := flatten.String(record[t.identifier])
	if !ok || id == "" {
		return fmt.Errorf("%w: summary entry %d has no %q", ErrDataIntegrity, len(t.ids), t.identifier)
	}
	if _, exists := t.records[id]; exists {
		return fmt.Errorf("%w: duplicate %s %q", ErrDataIntegrity, t.identifier, id)
	}

	t.ids = append(t.ids, id)
	t.records[id] = record
	return nil
}

// Identifiers lists document identifiers in summary order.
func (t *Table) Identifiers() []string {
	return append([]string(nil), t.ids...)
}

// Columns lists every flattened path found across entries, sorted, excluding
// the identifier.
func (t *Table) Columns() []string {
	seen := make(map[string]bool)
	var columns []string
	for _, record := range t.records {
		for path := range record {
			if path == t.identifier || seen[path] {
				continue
			}
			seen[path] = true
			columns = append(columns, path)
		}
	}
	sort.Strings(columns)
	return columns
}

// Record returns the flattened summary entry of a document.
func (t *Table) Record(id string) (flatten.Record, bool) {
	record, ok := t.records[id]
	return record, ok
}

// Lookup returns the context attributes of a document.
func (t *Table) Lookup(id string) (Row, bool) {
	record, ok := t.records[id]
	if !ok {
		return Row{}, false
	}

	text := func(key string) string {
		s, _ := flatten.String(record[key])
		return s
	}
	flag := func(key string) *bool {
		b, ok := record[key].(bool)
		if !ok {
			return nil
		}
		return &b
	}

	return Row{
		Identifier: id,
		Publisher:  text(KeyPublisher),
		Downloaded: text(KeyDownloaded),
		License:    flag(KeyLicense),
		Prefix:     text(KeyPrefix),
		Title:      text(KeyTitle),
		Type:       text(KeyType),
		Valid:      flag(KeyValid),
	}, true
}
