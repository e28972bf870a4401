// Package local implements the lorebook client used when no user is logged
// in. Everything is kept in the device key-value namespace:
//
//	loremaster_library      JSON array of library records
//	loremaster_book_<id>    JSON entry payload of one book
//	loremaster_active_id    raw id of the active book
//
// Older installs kept a single book under loremaster_entries and
// loremaster_name; Bootstrap migrates it once.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/kv"
)

const (
	LibraryKey       = "loremaster_library"
	ActiveKey        = "loremaster_active_id"
	LegacyEntriesKey = "loremaster_entries"
	LegacyNameKey    = "loremaster_name"

	bookKeyPrefix = "loremaster_book_"

	// LegacyDefaultName names a migrated book when no legacy name was stored.
	LegacyDefaultName = "My Lorebook"
)

// BookKey returns the key holding the entry payload of a book.
func BookKey(id string) string {
	return bookKeyPrefix + id
}

// Options configures a Client.
type Options struct {
	// StrictEntryUpdates makes UpdateEntry fail with ErrEntryNotFound when
	// no entry has the given uid. By default the update is a no-op that
	// still refreshes the book metadata.
	StrictEntryUpdates bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Client reads and writes lorebooks in a kv.Store.
type Client struct {
	store kv.Store
	opts  Options
}

// Bootstrap is the result of loading local state at startup.
type Bootstrap struct {
	Library []entities.LibraryRecord
	Book    *entities.Book
}

// NewClient creates a local client over store.
func NewClient(store kv.Store, opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{store: store, opts: opts}
}

func (c *Client) now() int64 {
	return c.opts.Now().UnixMilli()
}

// Bootstrap migrates legacy data if needed, loads the library, and resolves
// the active book. A missing or dangling active pointer falls back to the
// first library record and is persisted.
func (c *Client) Bootstrap(ctx context.Context) (*Bootstrap, error) {
	library, err := c.migrateLegacyIfNeeded()
	if err != nil {
		return nil, err
	}

	if len(library) == 0 {
		if err := c.ClearActiveID(ctx); err != nil {
			return nil, err
		}
		return &Bootstrap{Library: []entities.LibraryRecord{}}, nil
	}

	activeID, err := c.FetchActiveID(ctx)
	if err != nil {
		return nil, err
	}
	idx := entities.FindRecord(library, activeID)
	if activeID == "" || idx == -1 {
		idx = 0
		activeID = library[0].ID
		if err := c.SetActiveID(ctx, activeID); err != nil {
			return nil, err
		}
	}

	entries, err := c.loadEntries(activeID)
	if err != nil {
		return nil, err
	}

	return &Bootstrap{
		Library: library,
		Book:    &entities.Book{LibraryRecord: library[idx], Entries: entries},
	}, nil
}

// FetchLibrary returns the stored library index.
func (c *Client) FetchLibrary(ctx context.Context) ([]entities.LibraryRecord, error) {
	return c.loadLibrary()
}

// FetchActiveID returns the active pointer, or "" when none is stored.
func (c *Client) FetchActiveID(ctx context.Context) (string, error) {
	id, _, err := c.store.Get(ActiveKey)
	if err != nil {
		return "", fmt.Errorf("failed to read active lorebook: %w", err)
	}
	return id, nil
}

func (c *Client) SetActiveID(ctx context.Context, id string) error {
	if err := c.store.Set(ActiveKey, id); err != nil {
		return fmt.Errorf("failed to store active lorebook: %w", err)
	}
	return nil
}

func (c *Client) ClearActiveID(ctx context.Context) error {
	if err := c.store.Delete(ActiveKey); err != nil {
		return fmt.Errorf("failed to clear active lorebook: %w", err)
	}
	return nil
}

// CreateLorebook stores a new book and makes it active.
func (c *Client) CreateLorebook(ctx context.Context, name string, initial []entities.Entry) (*entities.Book, error) {
	if name == "" {
		name = entities.DefaultLorebookName
	}

	library, err := c.loadLibrary()
	if err != nil {
		return nil, err
	}

	entries := entities.EnsureUIDs(initial)
	now := c.now()
	count := len(entries)
	id := entities.NewBookID()

	meta := entities.BuildMetaAt(
		entities.Book{LibraryRecord: entities.LibraryRecord{ID: id, Name: name}, Entries: entries},
		entities.MetaOverrides{EntryCount: &count, LastEdited: &now, Created: &now},
		now,
	)

	if err := c.saveEntries(id, entries); err != nil {
		return nil, err
	}
	if err := c.saveLibrary(append(library, meta)); err != nil {
		return nil, err
	}
	if err := c.SetActiveID(ctx, id); err != nil {
		return nil, err
	}

	return &entities.Book{LibraryRecord: meta, Entries: entries}, nil
}

// LoadBook returns the book with its entries, or nil when the id is not in
// the library.
func (c *Client) LoadBook(ctx context.Context, id string) (*entities.Book, error) {
	library, err := c.loadLibrary()
	if err != nil {
		return nil, err
	}
	idx := entities.FindRecord(library, id)
	if idx == -1 {
		return nil, nil
	}

	entries, err := c.loadEntries(id)
	if err != nil {
		return nil, err
	}
	return &entities.Book{LibraryRecord: library[idx], Entries: entries}, nil
}

// DeleteLorebook removes the record and payload of a book. If it was the
// active book, the pointer moves to the first remaining record or is
// cleared.
func (c *Client) DeleteLorebook(ctx context.Context, id string) error {
	library, err := c.loadLibrary()
	if err != nil {
		return err
	}

	remaining := make([]entities.LibraryRecord, 0, len(library))
	for _, record := range library {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}

	if err := c.saveLibrary(remaining); err != nil {
		return err
	}
	if err := c.store.Delete(BookKey(id)); err != nil {
		return fmt.Errorf("failed to delete lorebook entries: %w", err)
	}

	activeID, err := c.FetchActiveID(ctx)
	if err != nil {
		return err
	}
	if activeID != id {
		return nil
	}
	if len(remaining) > 0 {
		return c.SetActiveID(ctx, remaining[0].ID)
	}
	return c.ClearActiveID(ctx)
}

// RenameLorebook renames a book, or returns nil when the id is unknown.
func (c *Client) RenameLorebook(ctx context.Context, id, name string) (*entities.LibraryRecord, error) {
	library, err := c.loadLibrary()
	if err != nil {
		return nil, err
	}
	idx := entities.FindRecord(library, id)
	if idx == -1 {
		return nil, nil
	}

	entries, err := c.loadEntries(id)
	if err != nil {
		return nil, err
	}

	record := library[idx]
	record.Name = name
	meta := entities.Touch(record, entries, c.now())
	library[idx] = meta

	if err := c.saveLibrary(library); err != nil {
		return nil, err
	}
	return &meta, nil
}

// AddEntry appends an entry, assigning a uid when it has none.
func (c *Client) AddEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error) {
	book, err := c.requireBook(ctx, id)
	if err != nil {
		return nil, err
	}

	stored := entities.EnsureUID(entry)
	entries := append(book.Entries, stored)

	meta, err := c.commit(book.LibraryRecord, entries)
	if err != nil {
		return nil, err
	}
	return &entities.EntryMutation{Entry: &stored, Lorebook: meta}, nil
}

// UpdateEntry replaces the first entry with a matching uid.
func (c *Client) UpdateEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error) {
	book, err := c.requireBook(ctx, id)
	if err != nil {
		return nil, err
	}

	var saved *entities.Entry
	entries := []entities.Entry(book.Entries)
	for i := range entries {
		if entries[i].UID == entry.UID {
			entry.SetUID(entries[i].UID)
			entries[i] = entry
			saved = &entries[i]
			break
		}
	}
	if saved == nil && c.opts.StrictEntryUpdates {
		return nil, fmt.Errorf("uid %d: %w", entry.UID, entities.ErrEntryNotFound)
	}

	meta, err := c.commit(book.LibraryRecord, entries)
	if err != nil {
		return nil, err
	}

	mutation := &entities.EntryMutation{Lorebook: meta}
	if saved != nil {
		copied := *saved
		mutation.Entry = &copied
	}
	return mutation, nil
}

// DeleteEntry removes every entry with the given uid.
func (c *Client) DeleteEntry(ctx context.Context, id string, uid int64) (*entities.EntryMutation, error) {
	book, err := c.requireBook(ctx, id)
	if err != nil {
		return nil, err
	}

	entries := make([]entities.Entry, 0, len(book.Entries))
	for _, entry := range book.Entries {
		if entry.UID != uid {
			entries = append(entries, entry)
		}
	}

	meta, err := c.commit(book.LibraryRecord, entries)
	if err != nil {
		return nil, err
	}
	return &entities.EntryMutation{Entry: nil, Lorebook: meta}, nil
}

func (c *Client) requireBook(ctx context.Context, id string) (*entities.Book, error) {
	book, err := c.LoadBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("%s: %w", id, entities.ErrLorebookNotFound)
	}
	return book, nil
}

// commit persists a book's entries and its recomputed library record.
func (c *Client) commit(record entities.LibraryRecord, entries []entities.Entry) (entities.LibraryRecord, error) {
	meta := entities.Touch(record, entries, c.now())

	if err := c.saveEntries(record.ID, entries); err != nil {
		return entities.LibraryRecord{}, err
	}

	library, err := c.loadLibrary()
	if err != nil {
		return entities.LibraryRecord{}, err
	}
	for i := range library {
		if library[i].ID == record.ID {
			library[i] = meta
		}
	}
	if err := c.saveLibrary(library); err != nil {
		return entities.LibraryRecord{}, err
	}
	return meta, nil
}

// migrateLegacyIfNeeded converts single-book data into a one-book library.
// It only runs while the library is empty.
func (c *Client) migrateLegacyIfNeeded() ([]entities.LibraryRecord, error) {
	library, err := c.loadLibrary()
	if err != nil || len(library) > 0 {
		return library, err
	}

	oldEntries, ok, err := c.store.Get(LegacyEntriesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy entries: %w", err)
	}
	if !ok || oldEntries == "" {
		return library, nil
	}

	log.Printf("Local client: migrating legacy single-lorebook data to the library format")

	entries := entities.EnsureUIDs(entities.NormalizeEntries([]byte(oldEntries)))
	name, _, err := c.store.Get(LegacyNameKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy name: %w", err)
	}
	if name == "" {
		name = LegacyDefaultName
	}

	id := entities.NewBookID()
	now := c.now()
	count := len(entries)
	meta := entities.BuildMetaAt(
		entities.Book{LibraryRecord: entities.LibraryRecord{ID: id, Name: name}, Entries: entries},
		entities.MetaOverrides{EntryCount: &count, LastEdited: &now, Created: &now},
		now,
	)

	library = []entities.LibraryRecord{meta}
	if err := c.saveLibrary(library); err != nil {
		return nil, err
	}
	if err := c.saveEntries(id, entries); err != nil {
		return nil, err
	}
	if err := c.store.Delete(LegacyEntriesKey); err != nil {
		return nil, fmt.Errorf("failed to remove legacy entries: %w", err)
	}
	if err := c.store.Delete(LegacyNameKey); err != nil {
		return nil, fmt.Errorf("failed to remove legacy name: %w", err)
	}
	if err := c.store.Set(ActiveKey, id); err != nil {
		return nil, fmt.Errorf("failed to store active lorebook: %w", err)
	}
	return library, nil
}

// loadLibrary reads the library index. A malformed index reads as empty.
func (c *Client) loadLibrary() ([]entities.LibraryRecord, error) {
	raw, _, err := c.store.Get(LibraryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read library: %w", err)
	}

	library := []entities.LibraryRecord{}
	if raw == "" {
		return library, nil
	}
	if err := json.Unmarshal([]byte(raw), &library); err != nil {
		log.Printf("Local client: library index is not valid JSON, treating it as empty: %v", err)
		return []entities.LibraryRecord{}, nil
	}
	if library == nil {
		library = []entities.LibraryRecord{}
	}
	return library, nil
}

// loadEntries reads a book payload. Malformed payloads read as empty.
func (c *Client) loadEntries(id string) ([]entities.Entry, error) {
	raw, _, err := c.store.Get(BookKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read entries of %s: %w", id, err)
	}
	if raw != "" && !json.Valid([]byte(raw)) {
		log.Printf("Local client: entries of %s are not valid JSON, treating them as empty", id)
	}
	return entities.NormalizeEntries([]byte(raw)), nil
}

func (c *Client) saveLibrary(library []entities.LibraryRecord) error {
	data, err := json.Marshal(library)
	if err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	if err := c.store.Set(LibraryKey, string(data)); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	return nil
}

func (c *Client) saveEntries(id string, entries []entities.Entry) error {
	data, err := json.Marshal(entities.Entries(entries))
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	if err := c.store.Set(BookKey(id), string(data)); err != nil {
		return fmt.Errorf("failed to save entries of %s: %w", id, err)
	}
	return nil
}
