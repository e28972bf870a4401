package entities

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every "book or entry does not exist" failure,
// whichever storage backend produced it.
var ErrNotFound = errors.New("not found")

var (
	ErrLorebookNotFound = fmt.Errorf("lorebook %w", ErrNotFound)
	ErrEntryNotFound    = fmt.Errorf("entry %w", ErrNotFound)
)
