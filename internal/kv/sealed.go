package kv

import (
	"fmt"
	"log"

	"github.com/mrlokans/loremaster/internal/crypto"
)

// Sealed encrypts the values of selected keys before they reach the
// underlying store. Other keys pass through unchanged. A selected key that
// still holds a plaintext value is returned as is and sealed on its next
// write. A value that no longer opens, for example after the key changed,
// reads as absent.
type Sealed struct {
	store  Store
	sealer *crypto.Sealer
	keys   map[string]bool
}

// NewSealed wraps store so the values of keys are stored sealed.
func NewSealed(store Store, sealer *crypto.Sealer, keys ...string) *Sealed {
	selected := make(map[string]bool, len(keys))
	for _, key := range keys {
		selected[key] = true
	}
	return &Sealed{store: store, sealer: sealer, keys: selected}
}

func (s *Sealed) Get(key string) (string, bool, error) {
	value, ok, err := s.store.Get(key)
	if err != nil || !ok || !s.keys[key] || !crypto.IsSealed(value) {
		return value, ok, err
	}

	plain, err := s.sealer.Open(value)
	if err != nil {
		log.Printf("KV: cannot open sealed value of %s, treating it as unset: %v", key, err)
		return "", false, nil
	}
	return plain, true, nil
}

func (s *Sealed) Set(key, value string) error {
	if s.keys[key] {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal value of %s: %w", key, err)
		}
		value = sealed
	}
	return s.store.Set(key, value)
}

func (s *Sealed) Delete(key string) error {
	return s.store.Delete(key)
}
