package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
)

var errNotObject = errors.New("not a JSON object")

// NormalizeEntries converts a persisted entry payload into an ordered list.
//
// A JSON array is decoded element by element. A JSON object is treated as a
// keyed mapping and its values are taken in document order. Anything else,
// including null and malformed input, yields an empty list. Elements that
// are not entry objects are dropped.
func NormalizeEntries(raw []byte) []Entry {
	entries := []Entry{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return entries
	}

	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			log.Printf("Entry normalizer: malformed entry array: %v", err)
			return entries
		}
	case '{':
		values, err := objectValues(raw)
		if err != nil {
			log.Printf("Entry normalizer: malformed entry mapping: %v", err)
			return entries
		}
		items = values
	default:
		return entries
	}

	for _, item := range items {
		var entry Entry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// NormalizeStringList accepts a list, a keyed mapping or a scalar and
// returns the values as strings. Null yields nil.
func NormalizeStringList(raw []byte) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
	case '{':
		values, err := objectValues(raw)
		if err != nil {
			return nil
		}
		items = values
	default:
		return []string{decodeString(raw)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, decodeString(item))
	}
	return out
}

// EnsureUID assigns a fresh uid to an entry that has none.
func EnsureUID(entry Entry) Entry {
	if !entry.HasUID() {
		entry.SetUID(NewEntryUID())
	}
	return entry
}

// EnsureUIDs applies EnsureUID to every entry and returns a new slice.
func EnsureUIDs(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		out[i] = EnsureUID(entry)
	}
	return out
}

// objectValues returns the values of a JSON object in the order their keys
// appear in the document.
func objectValues(raw []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var values []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return values, nil
}
