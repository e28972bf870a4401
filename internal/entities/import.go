package entities

import (
	"bytes"
	"encoding/json"
)

// DefaultImportName names imported books that carry no name of their own.
const DefaultImportName = "Imported Lorebook"

// ImportDocument is the JSON document accepted by imports and produced by
// exports: a name plus an entry payload in either encoding.
type ImportDocument struct {
	Name    string  `json:"name,omitempty"`
	Entries Entries `json:"entries"`
}

// ParseImport reads an import document. A bare entry array is accepted as
// well. Unreadable input yields an empty document.
func ParseImport(data []byte) ImportDocument {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ImportDocument{Entries: Entries{}}
	}
	if data[0] == '[' {
		return ImportDocument{Entries: NormalizeEntries(data)}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return ImportDocument{Entries: Entries{}}
	}

	doc := ImportDocument{Entries: NormalizeEntries(probe["entries"])}
	if raw, ok := probe["name"]; ok {
		doc.Name = decodeString(raw)
	}
	return doc
}
