// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── kv/              # Device-local key-value namespace
//	└── lorebooks/       # Lorebook and entry storage for the backend
//
// The same SQLite schema is opened in two roles. On a device it backs the
// flat key-value namespace the local lorebook client writes into. In the
// backend it stores lorebooks and entries as rows, and keeps the active
// lorebook pointer in the key-value table.
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./loremaster.db")
//
//	store := kv.NewRepository(db.DB)
//	books := lorebooks.NewRepository(db.DB)
//
//	library, err := books.ListLibrary()
//
// Each sub-package declares a compile-time check for the interface it
// implements: var _ SomeInterface = (*Repository)(nil)
package database
