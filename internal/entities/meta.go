package entities

import "time"

// MetaOverrides holds optional values that take precedence over the base
// book when building a library record. Nil fields are not overridden.
type MetaOverrides struct {
	Name       *string
	EntryCount *int
	LastEdited *int64
	Created    *int64
}

// NowMillis returns the current time in Unix milliseconds, the timestamp
// unit used on disk and on the wire.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// BuildMeta produces the canonical library record for a book-like value.
//
// The entry count comes from the override, then from the book's entry list
// when it carries one, then from the base record. Timestamps missing from
// both the override and the base default to the current time.
func BuildMeta(base Book, overrides MetaOverrides) LibraryRecord {
	return BuildMetaAt(base, overrides, NowMillis())
}

// BuildMetaAt is BuildMeta with an explicit notion of "now".
func BuildMetaAt(base Book, overrides MetaOverrides, now int64) LibraryRecord {
	meta := LibraryRecord{
		ID:   base.ID,
		Name: DefaultLorebookName,
	}

	switch {
	case overrides.Name != nil:
		meta.Name = *overrides.Name
	case base.Name != "":
		meta.Name = base.Name
	}

	switch {
	case overrides.EntryCount != nil:
		meta.EntryCount = *overrides.EntryCount
	case base.Entries != nil:
		meta.EntryCount = len(base.Entries)
	default:
		meta.EntryCount = base.EntryCount
	}
	if meta.EntryCount < 0 {
		meta.EntryCount = 0
	}

	meta.LastEdited = firstTimestamp(overrides.LastEdited, base.LastEdited, now)
	meta.Created = firstTimestamp(overrides.Created, base.Created, now)
	return meta
}

// Touch recomputes the derived fields of a record from its live entry list.
func Touch(record LibraryRecord, entries []Entry, now int64) LibraryRecord {
	count := len(entries)
	return BuildMetaAt(Book{LibraryRecord: record}, MetaOverrides{
		EntryCount: &count,
		LastEdited: &now,
	}, now)
}

func firstTimestamp(override *int64, base, now int64) int64 {
	if override != nil {
		return *override
	}
	if base != 0 {
		return base
	}
	return now
}
