// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help code agents understand
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - kv.Store: Flat device-local key-value namespace (internal/kv/kv.go)
//   - LorebookStore: Lorebook persistence behind the HTTP API (internal/http/lorebooks.go)
//   - Pinger: Database reachability for health checks (internal/http/health.go)
//   - BookReader: Read-only access to lorebooks (internal/exporters/generic.go)
//   - BookExporter: Write lorebooks out as files (internal/exporters/generic.go)
//
// ## Lorebook Store Interfaces
//
//   - Client: Persistence used by the lorebook store (internal/lorebook/store.go)
//   - LocalClient: Client that bootstraps from device storage (internal/lorebook/store.go)
//   - SessionSource: Login state that selects the client (internal/lorebook/store.go)
//   - Notifier: Sink for user-visible outcomes (internal/lorebook/notify.go)
//
// ## Background Work
//
//   - Exporter: Whole-library export run by the backup scheduler (internal/scheduler/backup.go)
//
// # Adding a New Storage Client
//
// To keep lorebooks somewhere else (e.g., a different service):
//
//  1. Create a package under internal/storage/
//
//     type Client struct {
//         baseURL string
//     }
//
//     func (c *Client) FetchLibrary(ctx context.Context) ([]entities.LibraryRecord, error)
//     func (c *Client) LoadBook(ctx context.Context, id string) (*entities.Book, error)
//     // ... the rest of lorebook.Client
//
//  2. Add a compile-time check in checks.go:
//
//     var _ lorebook.Client = (*mystorage.Client)(nil)
//
//  3. Pass it as lorebook.Config.Remote in internal/cli/app.go
//
// # Adding a New Export Format
//
//  1. Implement BookExporter in internal/exporters/
//
//     type YAMLExporter struct {
//         Dir string
//     }
//
//     func (e *YAMLExporter) Export(books []entities.Book) (ExportResult, error)
//
//  2. Wrap it with NewLibraryExporter for scheduled backups in entrypoint.go
//
// # Adding a New Database Domain
//
// To add a new data domain:
//
//  1. Create sub-package: internal/database/<domain>/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add the models to the AutoMigrate call in internal/database/database.go
//
//  4. Add compile-time check:
//
//     var _ SomeStore = (*Repository)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
