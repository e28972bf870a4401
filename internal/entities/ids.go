package entities

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	uidMu   sync.Mutex
	lastUID int64
)

// NewBookID returns an id of the form book_<unix-ms>_<6 hex chars>, the
// format shared by every client and the backend.
func NewBookID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("book_%d_%s", NowMillis(), suffix)
}

// NewEntryUID returns a numeric entry uid. Uids are millisecond timestamps
// bumped as needed so the sequence is strictly increasing within a process.
func NewEntryUID() int64 {
	uidMu.Lock()
	defer uidMu.Unlock()

	uid := NowMillis()
	if uid <= lastUID {
		uid = lastUID + 1
	}
	lastUID = uid
	return uid
}
