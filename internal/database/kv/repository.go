// Package kv provides the SQLite-backed device key-value namespace.
//
// # Usage
//
//	repo := kv.NewRepository(db.DB)
//	value, ok, err := repo.Get("loremaster_library")
package kv

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/loremaster/internal/entities"
)

// Repository stores each key as one row of the key_values table.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new key-value repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the value stored under key and whether the key exists.
func (r *Repository) Get(key string) (string, bool, error) {
	var row entities.KeyValue
	err := r.db.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return row.Value, true, nil
}

// Set creates or replaces the value stored under key.
func (r *Repository) Set(key, value string) error {
	row := entities.KeyValue{Key: key, Value: value}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Repository) Delete(key string) error {
	if err := r.db.Where("key = ?", key).Delete(&entities.KeyValue{}).Error; err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (r *Repository) Keys() ([]string, error) {
	var keys []string
	if err := r.db.Model(&entities.KeyValue{}).Order("key").Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}
