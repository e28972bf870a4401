// Package lorebooks provides database operations for lorebooks served by the
// backend.
//
// Entries are stored one row per entry with their full JSON document, so
// attributes the backend does not model are returned exactly as received.
// The entry count of a book is never stored; it is counted from the rows.
package lorebooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mrlokans/loremaster/internal/database/kv"
	"github.com/mrlokans/loremaster/internal/entities"
)

// Repository handles all lorebook database operations.
type Repository struct {
	db       *gorm.DB
	settings *kv.Repository
	now      func() int64
}

// NewRepository creates a new lorebook repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		settings: kv.NewRepository(db),
		now:      entities.NowMillis,
	}
}

// ListLibrary returns the metadata of every lorebook in creation order.
func (r *Repository) ListLibrary() ([]entities.LibraryRecord, error) {
	var rows []entities.StoredLorebook
	if err := r.db.Order("created, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list lorebooks: %w", err)
	}

	counts, err := r.entryCounts()
	if err != nil {
		return nil, err
	}

	library := make([]entities.LibraryRecord, 0, len(rows))
	for _, row := range rows {
		library = append(library, toRecord(row, counts[row.ID]))
	}
	return library, nil
}

// GetLorebook returns a lorebook with its entries.
func (r *Repository) GetLorebook(id string) (*entities.Book, error) {
	row, err := r.findLorebook(r.db, id)
	if err != nil {
		return nil, err
	}

	entries, err := r.loadEntries(r.db, id)
	if err != nil {
		return nil, err
	}

	return &entities.Book{
		LibraryRecord: toRecord(*row, len(entries)),
		Entries:       entries,
	}, nil
}

// CreateLorebook stores a new lorebook. The first lorebook created becomes
// the active one.
func (r *Repository) CreateLorebook(name string, entries []entities.Entry) (*entities.Book, error) {
	if name == "" {
		name = entities.DefaultLorebookName
	}
	entries = entities.EnsureUIDs(entries)
	now := r.now()

	row := entities.StoredLorebook{
		ID:         entities.NewBookID(),
		Name:       name,
		LastEdited: now,
		Created:    now,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create lorebook: %w", err)
		}
		for i, entry := range entries {
			if err := insertEntry(tx, row.ID, i, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	active, err := r.ActiveID()
	if err != nil {
		return nil, err
	}
	if active == "" {
		if err := r.settings.Set(entities.SettingKeyActiveLorebook, row.ID); err != nil {
			return nil, err
		}
	}

	return &entities.Book{
		LibraryRecord: toRecord(row, len(entries)),
		Entries:       entries,
	}, nil
}

// DeleteLorebook removes a lorebook and its entries. If it was active, the
// pointer moves to the oldest remaining lorebook or is cleared.
func (r *Repository) DeleteLorebook(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := r.findLorebook(tx, id); err != nil {
			return err
		}
		if err := tx.Where("lorebook_id = ?", id).Delete(&entities.StoredEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
		if err := tx.Delete(&entities.StoredLorebook{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete lorebook: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	active, err := r.ActiveID()
	if err != nil || active != id {
		return err
	}

	var next entities.StoredLorebook
	err = r.db.Order("created, id").First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.ClearActive()
	}
	if err != nil {
		return fmt.Errorf("failed to pick next active lorebook: %w", err)
	}
	return r.settings.Set(entities.SettingKeyActiveLorebook, next.ID)
}

// RenameLorebook changes a lorebook's name and refreshes its edit time.
func (r *Repository) RenameLorebook(id, name string) (*entities.LibraryRecord, error) {
	var record entities.LibraryRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		row, err := r.findLorebook(tx, id)
		if err != nil {
			return err
		}
		row.Name = name
		row.LastEdited = r.now()
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("failed to rename lorebook: %w", err)
		}
		count, err := countEntries(tx, id)
		if err != nil {
			return err
		}
		record = toRecord(*row, count)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AddEntry appends an entry, minting a uid when the caller sent none.
func (r *Repository) AddEntry(id string, entry entities.Entry) (*entities.EntryMutation, error) {
	entry = entities.EnsureUID(entry)

	var mutation *entities.EntryMutation
	err := r.db.Transaction(func(tx *gorm.DB) error {
		row, err := r.findLorebook(tx, id)
		if err != nil {
			return err
		}

		var last entities.StoredEntry
		position := 0
		err = tx.Where("lorebook_id = ?", id).Order("position DESC").First(&last).Error
		if err == nil {
			position = last.Position + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to read entry positions: %w", err)
		}

		if err := insertEntry(tx, id, position, entry); err != nil {
			return err
		}

		mutation, err = r.touch(tx, row, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutation, nil
}

// UpdateEntry replaces the entry with the given uid. The uid in the path
// wins over any uid in the payload.
func (r *Repository) UpdateEntry(id string, uid int64, entry entities.Entry) (*entities.EntryMutation, error) {
	entry.SetUID(uid)

	var mutation *entities.EntryMutation
	err := r.db.Transaction(func(tx *gorm.DB) error {
		row, err := r.findLorebook(tx, id)
		if err != nil {
			return err
		}

		var stored entities.StoredEntry
		err = tx.Where("lorebook_id = ? AND uid = ?", id, uid).Order("position").First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find entry: %w", err)
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		stored.Payload = string(payload)
		if err := tx.Save(&stored).Error; err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		mutation, err = r.touch(tx, row, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutation, nil
}

// DeleteEntry removes every entry with the given uid.
func (r *Repository) DeleteEntry(id string, uid int64) (*entities.EntryMutation, error) {
	var mutation *entities.EntryMutation
	err := r.db.Transaction(func(tx *gorm.DB) error {
		row, err := r.findLorebook(tx, id)
		if err != nil {
			return err
		}

		result := tx.Where("lorebook_id = ? AND uid = ?", id, uid).Delete(&entities.StoredEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete entry: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return entities.ErrEntryNotFound
		}

		mutation, err = r.touch(tx, row, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutation, nil
}

// ActiveID returns the active lorebook id, or "" when none is set.
func (r *Repository) ActiveID() (string, error) {
	id, _, err := r.settings.Get(entities.SettingKeyActiveLorebook)
	return id, err
}

// SetActive points the active pointer at an existing lorebook.
func (r *Repository) SetActive(id string) error {
	if _, err := r.findLorebook(r.db, id); err != nil {
		return err
	}
	return r.settings.Set(entities.SettingKeyActiveLorebook, id)
}

// ClearActive removes the active pointer.
func (r *Repository) ClearActive() error {
	return r.settings.Delete(entities.SettingKeyActiveLorebook)
}

// SeedStarter creates a starter lorebook when the backend holds none, so a
// first-run client has something to render.
func (r *Repository) SeedStarter() error {
	var count int64
	if err := r.db.Model(&entities.StoredLorebook{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count lorebooks: %w", err)
	}
	if count > 0 {
		return nil
	}

	starter := entities.NewEntry()
	starter.Comment = "Getting Started"
	starter.Content = "Replace me with your own lore. This entry demonstrates the schema."
	starter.Key = []string{"demo", "lore"}
	starter.KeySecondary = []string{"sample"}

	book, err := r.CreateLorebook("Starter Lorebook", []entities.Entry{starter})
	if err != nil {
		return err
	}
	log.Printf("Seeded starter lorebook %s", book.ID)
	return r.settings.Set(entities.SettingKeyActiveLorebook, book.ID)
}

func (r *Repository) findLorebook(tx *gorm.DB, id string) (*entities.StoredLorebook, error) {
	var row entities.StoredLorebook
	err := tx.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entities.ErrLorebookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lorebook: %w", err)
	}
	return &row, nil
}

func (r *Repository) loadEntries(tx *gorm.DB, id string) ([]entities.Entry, error) {
	var rows []entities.StoredEntry
	if err := tx.Where("lorebook_id = ?", id).Order("position, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	entries := make([]entities.Entry, 0, len(rows))
	for _, row := range rows {
		var entry entities.Entry
		if err := json.Unmarshal([]byte(row.Payload), &entry); err != nil {
			log.Printf("Skipping unreadable entry %d of lorebook %s: %v", row.ID, id, err)
			continue
		}
		entry.SetUID(row.UID)
		entries = append(entries, entry)
	}
	return entries, nil
}

// touch refreshes the edit time and returns the mutation response.
func (r *Repository) touch(tx *gorm.DB, row *entities.StoredLorebook, entry *entities.Entry) (*entities.EntryMutation, error) {
	row.LastEdited = r.now()
	if err := tx.Model(row).Update("last_edited", row.LastEdited).Error; err != nil {
		return nil, fmt.Errorf("failed to touch lorebook: %w", err)
	}
	count, err := countEntries(tx, row.ID)
	if err != nil {
		return nil, err
	}
	return &entities.EntryMutation{
		Entry:    entry,
		Lorebook: toRecord(*row, count),
	}, nil
}

func (r *Repository) entryCounts() (map[string]int, error) {
	var rows []struct {
		LorebookID string
		Count      int
	}
	err := r.db.Model(&entities.StoredEntry{}).
		Select("lorebook_id, COUNT(*) AS count").
		Group("lorebook_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.LorebookID] = row.Count
	}
	return counts, nil
}

func countEntries(tx *gorm.DB, id string) (int, error) {
	var count int64
	if err := tx.Model(&entities.StoredEntry{}).Where("lorebook_id = ?", id).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(count), nil
}

func insertEntry(tx *gorm.DB, lorebookID string, position int, entry entities.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	row := entities.StoredEntry{
		LorebookID: lorebookID,
		UID:        entry.UID,
		Position:   position,
		Payload:    string(payload),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func toRecord(row entities.StoredLorebook, count int) entities.LibraryRecord {
	return entities.LibraryRecord{
		ID:         row.ID,
		Name:       row.Name,
		EntryCount: count,
		LastEdited: row.LastEdited,
		Created:    row.Created,
	}
}
