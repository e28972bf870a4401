package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DefaultLorebookName is used whenever a book is created or described without a name.
const DefaultLorebookName = "New Lorebook"

// Entry is one keyed note inside a lorebook.
//
// Fields the application does not model (order, position, depth and the
// rest of the world-info attributes written by other tools) are kept in
// Extra and written back unchanged.
type Entry struct {
	UID          int64    `json:"uid"`
	Comment      string   `json:"comment"`
	Key          []string `json:"key"`
	KeySecondary []string `json:"keysecondary"`
	Content      string   `json:"content"`
	Enabled      bool     `json:"enabled"`
	Constant     bool     `json:"constant"`
	Selective    bool     `json:"selective"`

	Extra map[string]json.RawMessage `json:"-"`

	// zeroUID is set when uid 0 was given explicitly.
	zeroUID bool
}

// NewEntry returns an entry with the defaults applied to freshly decoded entries.
func NewEntry() Entry {
	return Entry{Enabled: true, Selective: true}
}

// HasUID reports whether the entry carries a uid, including an explicit 0.
func (e Entry) HasUID() bool {
	return e.UID != 0 || e.zeroUID
}

// SetUID assigns uid and marks it as present.
func (e *Entry) SetUID(uid int64) {
	e.UID = uid
	e.zeroUID = uid == 0
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("entry must be a JSON object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("entry must be a JSON object")
	}

	decoded := NewEntry()
	for name, raw := range fields {
		switch name {
		case "uid":
			if uid, ok := decodeUID(raw); ok {
				decoded.SetUID(uid)
			}
		case "comment":
			decoded.Comment = decodeString(raw)
		case "content":
			decoded.Content = decodeString(raw)
		case "key":
			decoded.Key = NormalizeStringList(raw)
		case "keysecondary":
			decoded.KeySecondary = NormalizeStringList(raw)
		case "enabled":
			decoded.Enabled = decodeBool(raw, true)
		case "constant":
			decoded.Constant = decodeBool(raw, false)
		case "selective":
			decoded.Selective = decodeBool(raw, true)
		default:
			if decoded.Extra == nil {
				decoded.Extra = make(map[string]json.RawMessage)
			}
			decoded.Extra[name] = raw
		}
	}

	*e = decoded
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(e.Extra)+8)
	for name, raw := range e.Extra {
		fields[name] = raw
	}
	if e.HasUID() {
		fields["uid"] = e.UID
	}
	fields["comment"] = e.Comment
	fields["key"] = nonNilStrings(e.Key)
	fields["keysecondary"] = nonNilStrings(e.KeySecondary)
	fields["content"] = e.Content
	fields["enabled"] = e.Enabled
	fields["constant"] = e.Constant
	fields["selective"] = e.Selective
	return json.Marshal(fields)
}

// Entries is an entry list that accepts both encodings seen in persisted
// data: a JSON array, or an object keyed by arbitrary ids.
type Entries []Entry

func (es *Entries) UnmarshalJSON(data []byte) error {
	*es = NormalizeEntries(data)
	return nil
}

func (es Entries) MarshalJSON() ([]byte, error) {
	if es == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Entry(es))
}

// LibraryRecord is the library-level view of a lorebook.
// EntryCount and LastEdited are derived from the entry list.
type LibraryRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntryCount int    `json:"entryCount"`
	LastEdited int64  `json:"lastEdited"`
	Created    int64  `json:"created"`
}

// Book is a library record together with its entries.
type Book struct {
	LibraryRecord
	Entries Entries `json:"entries"`
}

// EntryMutation is returned by every entry add/update/delete so callers can
// refresh their copy of the book metadata.
type EntryMutation struct {
	Entry    *Entry        `json:"entry"`
	Lorebook LibraryRecord `json:"lorebook"`
}

// FindRecord returns the index of the record with the given id, or -1.
func FindRecord(library []LibraryRecord, id string) int {
	for i := range library {
		if library[i].ID == id {
			return i
		}
	}
	return -1
}

// SortByLastEdited orders records most recently edited first.
func SortByLastEdited(library []LibraryRecord) {
	sort.SliceStable(library, func(i, j int) bool {
		return library[i].LastEdited > library[j].LastEdited
	})
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// decodeUID reads a numeric or numeric-string uid. ok is false for null and
// for values that are not numbers.
func decodeUID(raw json.RawMessage) (uid int64, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == 'n' {
		return 0, false
	}
	var num json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		num = json.Number(s)
	} else if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if v, err := num.Int64(); err == nil {
		return v, true
	}
	if f, err := num.Float64(); err == nil {
		return int64(f), true
	}
	return 0, false
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return scalarText(raw)
}

func decodeBool(raw json.RawMessage, fallback bool) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fallback
	}
	return b
}

// scalarText renders a non-string JSON scalar as text; null yields "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}
