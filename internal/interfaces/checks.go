package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/loremaster/internal/database"
	kvrepo "github.com/mrlokans/loremaster/internal/database/kv"
	"github.com/mrlokans/loremaster/internal/database/lorebooks"
	"github.com/mrlokans/loremaster/internal/exporters"
	"github.com/mrlokans/loremaster/internal/http"
	"github.com/mrlokans/loremaster/internal/kv"
	"github.com/mrlokans/loremaster/internal/lorebook"
	"github.com/mrlokans/loremaster/internal/scheduler"
	"github.com/mrlokans/loremaster/internal/session"
	"github.com/mrlokans/loremaster/internal/storage/local"
	"github.com/mrlokans/loremaster/internal/storage/remote"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Device key-value namespace
var _ kv.Store = (*kvrepo.Repository)(nil)
var _ kv.Store = (*kv.Memory)(nil)

// LorebookStore implementations
var _ http.LorebookStore = (*lorebooks.Repository)(nil)

// Pinger implementations
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Lorebook Clients
// =============================================================================

// Client implementations
var _ lorebook.LocalClient = (*local.Client)(nil)
var _ lorebook.Client = (*remote.Client)(nil)

// SessionSource implementations
var _ lorebook.SessionSource = (*session.Session)(nil)

// Notifier implementations
var _ lorebook.Notifier = lorebook.LogNotifier{}
var _ lorebook.Notifier = lorebook.NotifierFunc(nil)

// =============================================================================
// Export Pipeline
// =============================================================================

// BookReader/BookExporter implementations
var _ exporters.BookReader = (*lorebooks.Repository)(nil)
var _ exporters.BookExporter = (*exporters.JSONExporter)(nil)

// Backup Exporter implementations
var _ scheduler.Exporter = (*exporters.LibraryExporter)(nil)
