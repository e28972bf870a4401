package entities

import "time"

// KeyValue is one key of the device-local namespace.
type KeyValue struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KeyValue) TableName() string {
	return "key_values"
}

// StoredLorebook is the backend row for a lorebook. The entry count is not
// stored; it is always derived from the entry rows.
type StoredLorebook struct {
	ID         string        `gorm:"primaryKey;size:64"`
	Name       string        `gorm:"size:255"`
	LastEdited int64         `gorm:"index"`
	Created    int64         `gorm:"index"`
	Entries    []StoredEntry `gorm:"foreignKey:LorebookID;constraint:OnDelete:CASCADE"`
}

func (StoredLorebook) TableName() string {
	return "lorebooks"
}

// StoredEntry keeps the full JSON document of an entry so fields the
// backend does not model survive a round trip.
type StoredEntry struct {
	ID         uint   `gorm:"primaryKey"`
	LorebookID string `gorm:"index:idx_entry_book_uid;size:64"`
	UID        int64  `gorm:"index:idx_entry_book_uid"`
	Position   int
	Payload    string `gorm:"type:text"`
}

func (StoredEntry) TableName() string {
	return "lorebook_entries"
}

// Backend keys kept in the key_values table.
const (
	// Id of the lorebook the user last opened, restored on the next session.
	SettingKeyActiveLorebook = "active_lorebook_id"

	SettingKeyBackupLastAt      = "backup_last_at"
	SettingKeyBackupLastStatus  = "backup_last_status"
	SettingKeyBackupLastMessage = "backup_last_message"
)
