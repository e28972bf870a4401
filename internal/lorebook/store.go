// Package lorebook holds the in-memory state of the lorebook library and the
// operations a front end drives it with.
//
// The Store talks to one of two clients: a local client over the device
// key-value namespace while logged out, and the remote lorebook service
// while logged in. A login state change discards the in-memory state and
// re-hydrates from the newly selected client.
//
// Client calls are not serialized. Two overlapping mutations may complete
// out of order, and the last response applied wins.
package lorebook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/session"
	"github.com/mrlokans/loremaster/internal/storage/local"
)

// DefaultImportDelay is the minimum time an import keeps IsImporting set,
// so a front end can show progress.
const DefaultImportDelay = 800 * time.Millisecond

// ErrNoLocalClient is returned by New when Config.Local is nil.
var ErrNoLocalClient = errors.New("lorebook store requires a local client")

// Client persists lorebooks. The local and remote storage clients both
// implement it.
type Client interface {
	FetchLibrary(ctx context.Context) ([]entities.LibraryRecord, error)
	FetchActiveID(ctx context.Context) (string, error)
	SetActiveID(ctx context.Context, id string) error
	ClearActiveID(ctx context.Context) error
	LoadBook(ctx context.Context, id string) (*entities.Book, error)
	CreateLorebook(ctx context.Context, name string, initial []entities.Entry) (*entities.Book, error)
	RenameLorebook(ctx context.Context, id, name string) (*entities.LibraryRecord, error)
	DeleteLorebook(ctx context.Context, id string) error
	AddEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error)
	UpdateEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error)
	DeleteEntry(ctx context.Context, id string, uid int64) (*entities.EntryMutation, error)
}

// LocalClient is a Client that can also bootstrap itself from device
// storage, migrating legacy data on the way.
type LocalClient interface {
	Client
	Bootstrap(ctx context.Context) (*local.Bootstrap, error)
}

// SessionSource reports the login state and its changes.
type SessionSource interface {
	IsLoggedIn() bool
	Subscribe(fn func(loggedIn bool)) func()
}

// Config wires a Store to its collaborators.
type Config struct {
	Local  LocalClient
	Remote Client

	// Session selects the mode. Without one the store stays local.
	Session SessionSource

	// Notifier receives operation outcomes. Defaults to LogNotifier.
	Notifier Notifier

	// ImportDelay overrides DefaultImportDelay.
	ImportDelay time.Duration
}

// State is the observable state of a Store.
type State struct {
	Mode              session.Mode
	Library           []entities.LibraryRecord
	CurrentLorebookID string
	LorebookName      string
	Entries           []entities.Entry
	SearchQuery       string
	IsImporting       bool
}

// Store is the lorebook orchestrator.
type Store struct {
	local       LocalClient
	remote      Client
	session     SessionSource
	notifier    Notifier
	importDelay time.Duration

	mu        sync.RWMutex
	state     State
	observers map[int]func(State)
	nextObs   int

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a Store. Call Start to hydrate it.
func New(cfg Config) (*Store, error) {
	if cfg.Local == nil {
		return nil, ErrNoLocalClient
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	if cfg.ImportDelay <= 0 {
		cfg.ImportDelay = DefaultImportDelay
	}

	return &Store{
		local:       cfg.Local,
		remote:      cfg.Remote,
		session:     cfg.Session,
		notifier:    cfg.Notifier,
		importDelay: cfg.ImportDelay,
		state:       emptyState(session.ModeLocal, ""),
		observers:   make(map[int]func(State)),
	}, nil
}

// Start selects the mode from the session, hydrates, and re-hydrates on
// every later login state change until Close. ctx bounds the hydrations
// triggered by those changes.
func (s *Store) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	mode := session.ModeLocal
	if s.session != nil {
		mode = s.modeFor(s.session.IsLoggedIn())
		s.unsubscribe = s.session.Subscribe(func(loggedIn bool) {
			s.switchMode(s.ctx, s.modeFor(loggedIn))
		})
	}

	s.update(func(st *State) {
		*st = emptyState(mode, st.SearchQuery)
	})
	s.Hydrate(s.ctx)
}

// Close stops following the session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Mode returns the current persistence mode.
func (s *Store) Mode() session.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Mode
}

func (s *Store) switchMode(ctx context.Context, mode session.Mode) {
	if s.Mode() == mode {
		return
	}
	log.Printf("Lorebook store: switching to %s mode", mode)

	s.update(func(st *State) {
		*st = emptyState(mode, st.SearchQuery)
	})
	s.Hydrate(ctx)
}

// modeFor maps the login state to a mode. Without a remote client the
// store stays local whatever the session says.
func (s *Store) modeFor(loggedIn bool) session.Mode {
	if loggedIn && s.remote == nil {
		log.Printf("Lorebook store: logged in but no remote client configured, staying in local mode")
		return session.ModeLocal
	}
	return session.ModeFor(loggedIn)
}

// client returns the client for the current mode.
func (s *Store) client() (Client, session.Mode) {
	mode := s.Mode()
	if mode == session.ModeRemote {
		return s.remote, mode
	}
	return s.local, mode
}

// Hydrate replaces the in-memory state with what the current client holds.
// In remote mode any failure leaves the state empty rather than partially
// loaded.
func (s *Store) Hydrate(ctx context.Context) {
	if s.Mode() == session.ModeRemote {
		s.hydrateRemote(ctx, s.remote)
		return
	}
	s.hydrateLocal(ctx)
}

func (s *Store) hydrateLocal(ctx context.Context) {
	boot, err := s.local.Bootstrap(ctx)
	if err != nil {
		log.Printf("Lorebook store: local hydration failed: %v", err)
		s.notifier.Notify(LevelError, "Failed to load local lorebooks")
		s.update(clearAll)
		return
	}

	s.update(func(st *State) {
		st.Library = copyLibrary(boot.Library)
		if boot.Book != nil {
			applyBook(st, boot.Book)
		} else {
			clearActive(st)
		}
	})
}

func (s *Store) hydrateRemote(ctx context.Context, client Client) {
	library, err := client.FetchLibrary(ctx)
	if err != nil {
		log.Printf("Lorebook store: remote hydration failed, leaving state empty: %v", err)
		s.notifier.Notify(LevelError, "Failed to load lorebooks from the server")
		s.update(clearAll)
		return
	}

	activeID, err := client.FetchActiveID(ctx)
	if err != nil {
		log.Printf("Lorebook store: no active lorebook stored on server: %v", err)
		activeID = ""
	}
	if entities.FindRecord(library, activeID) == -1 {
		activeID = ""
		if len(library) > 0 {
			activeID = library[0].ID
		}
	}

	var book *entities.Book
	if activeID != "" {
		book, err = client.LoadBook(ctx, activeID)
		if err == nil && book == nil {
			err = fmt.Errorf("%s: %w", activeID, entities.ErrLorebookNotFound)
		}
		if err != nil {
			log.Printf("Lorebook store: remote hydration failed, leaving state empty: %v", err)
			s.notifier.Notify(LevelError, "Failed to load lorebooks from the server")
			s.update(clearAll)
			return
		}
	}

	s.update(func(st *State) {
		st.Library = copyLibrary(library)
		if book != nil {
			applyBook(st, book)
		} else {
			clearActive(st)
		}
	})
}

// LoadBook makes id the active book. On failure the state is unchanged.
func (s *Store) LoadBook(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	client, _ := s.client()

	book, err := client.LoadBook(ctx, id)
	if err == nil && book == nil {
		err = fmt.Errorf("%s: %w", id, entities.ErrLorebookNotFound)
	}
	if err != nil {
		s.fail(err, "Failed to load lorebook")
		return false
	}
	if err := client.SetActiveID(ctx, id); err != nil {
		s.fail(err, "Failed to load lorebook")
		return false
	}

	s.update(func(st *State) {
		applyBook(st, book)
	})
	return true
}

// CreateLorebook creates a book, makes it active, and returns its id, or ""
// on failure.
func (s *Store) CreateLorebook(ctx context.Context, name string, initial []entities.Entry) string {
	if name == "" {
		name = entities.DefaultLorebookName
	}
	client, mode := s.client()

	book, err := client.CreateLorebook(ctx, name, copyEntries(initial))
	if err != nil {
		s.fail(err, "Failed to create lorebook")
		return ""
	}

	s.update(func(st *State) {
		applyBook(st, book)
	})

	if mode == session.ModeRemote {
		if err := client.SetActiveID(ctx, book.ID); err != nil {
			s.fail(err, "Failed to create lorebook")
			return ""
		}
	}

	s.notifier.Notify(LevelSuccess, fmt.Sprintf("Created lorebook %q", book.Name))
	return book.ID
}

// DeleteLorebook removes a book. Deleting the active book loads the first
// remaining one, or clears the active state when none is left.
func (s *Store) DeleteLorebook(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	client, mode := s.client()

	if err := client.DeleteLorebook(ctx, id); err != nil {
		s.fail(err, "Failed to delete lorebook")
		return false
	}

	var wasActive bool
	var fallbackID string
	s.update(func(st *State) {
		remaining := make([]entities.LibraryRecord, 0, len(st.Library))
		for _, record := range st.Library {
			if record.ID != id {
				remaining = append(remaining, record)
			}
		}
		st.Library = remaining

		wasActive = st.CurrentLorebookID == id
		if wasActive && len(remaining) > 0 {
			fallbackID = remaining[0].ID
		}
	})

	if !wasActive {
		s.notifier.Notify(LevelSuccess, "Lorebook deleted")
		return true
	}

	if fallbackID != "" && s.LoadBook(ctx, fallbackID) {
		s.notifier.Notify(LevelSuccess, "Lorebook deleted")
		return true
	}

	// Never leave the active id pointing at the deleted book.
	s.update(clearActive)
	if fallbackID == "" && mode == session.ModeRemote {
		if err := client.ClearActiveID(ctx); err != nil {
			s.fail(err, "Failed to delete lorebook")
			return false
		}
	}

	s.notifier.Notify(LevelSuccess, "Lorebook deleted")
	return true
}

// RenameLorebook renames a book and keeps LorebookName in sync when it is
// the active one.
func (s *Store) RenameLorebook(ctx context.Context, id, name string) bool {
	if id == "" || name == "" {
		return false
	}
	client, _ := s.client()

	record, err := client.RenameLorebook(ctx, id, name)
	if err == nil && record == nil {
		err = fmt.Errorf("%s: %w", id, entities.ErrLorebookNotFound)
	}
	if err != nil {
		s.fail(err, "Failed to rename lorebook")
		return false
	}

	s.update(func(st *State) {
		applyMeta(st, *record)
	})
	return true
}

// LoadLorebook imports a JSON document as a new book. IsImporting is set
// for at least the configured import delay. name wins over a name found in
// the document. Returns the new book id, or "".
func (s *Store) LoadLorebook(ctx context.Context, data []byte, name string) string {
	s.update(func(st *State) {
		st.IsImporting = true
	})
	defer s.update(func(st *State) {
		st.IsImporting = false
	})

	if err := wait(ctx, s.importDelay); err != nil {
		s.fail(err, "Failed to import lorebook")
		return ""
	}

	doc := entities.ParseImport(data)
	if name == "" {
		name = doc.Name
	}
	if name == "" {
		name = entities.DefaultImportName
	}

	return s.CreateLorebook(ctx, name, doc.Entries)
}

// AddEntry appends an entry to the active book and returns the stored
// entry, which carries its assigned uid.
func (s *Store) AddEntry(ctx context.Context, entry entities.Entry) (entities.Entry, bool) {
	id := s.currentID()
	if id == "" {
		return entities.Entry{}, false
	}
	client, _ := s.client()

	mutation, err := client.AddEntry(ctx, id, entry)
	if err != nil {
		s.fail(err, "Failed to add entry")
		return entities.Entry{}, false
	}

	var stored entities.Entry
	s.update(func(st *State) {
		if mutation.Entry != nil && st.CurrentLorebookID == id {
			stored = *mutation.Entry
			st.Entries = append(st.Entries, stored)
		}
		applyMeta(st, mutation.Lorebook)
	})
	return stored, true
}

// UpdateEntry replaces the entry with the same uid in the active book with
// the client's stored version.
func (s *Store) UpdateEntry(ctx context.Context, entry entities.Entry) bool {
	id := s.currentID()
	if id == "" {
		return false
	}
	client, _ := s.client()

	mutation, err := client.UpdateEntry(ctx, id, entry)
	if err != nil {
		s.fail(err, "Failed to update entry")
		return false
	}

	s.update(func(st *State) {
		if mutation.Entry != nil && st.CurrentLorebookID == id {
			for i := range st.Entries {
				if st.Entries[i].UID == entry.UID {
					st.Entries[i] = *mutation.Entry
					break
				}
			}
		}
		applyMeta(st, mutation.Lorebook)
	})
	return true
}

// DeleteEntry removes every entry with uid from the active book.
func (s *Store) DeleteEntry(ctx context.Context, uid int64) bool {
	id := s.currentID()
	if id == "" {
		return false
	}
	client, _ := s.client()

	mutation, err := client.DeleteEntry(ctx, id, uid)
	if err != nil {
		s.fail(err, "Failed to delete entry")
		return false
	}

	s.update(func(st *State) {
		if st.CurrentLorebookID == id {
			kept := make([]entities.Entry, 0, len(st.Entries))
			for _, e := range st.Entries {
				if e.UID != uid {
					kept = append(kept, e)
				}
			}
			st.Entries = kept
		}
		applyMeta(st, mutation.Lorebook)
	})
	return true
}

// SetSearchQuery sets the filter applied by FilteredEntries.
func (s *Store) SetSearchQuery(query string) {
	s.update(func(st *State) {
		st.SearchQuery = query
	})
}

func (s *Store) currentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentLorebookID
}

func (s *Store) fail(err error, message string) {
	log.Printf("Lorebook store: %s: %v", message, err)
	s.notifier.Notify(LevelError, message)
}

// update mutates the state under the lock, then tells observers.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.snapshotLocked()
	observers := make([]func(State), 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func emptyState(mode session.Mode, query string) State {
	return State{
		Mode:        mode,
		Library:     []entities.LibraryRecord{},
		Entries:     []entities.Entry{},
		SearchQuery: query,
	}
}

func clearAll(st *State) {
	st.Library = []entities.LibraryRecord{}
	clearActive(st)
}

func clearActive(st *State) {
	st.CurrentLorebookID = ""
	st.LorebookName = ""
	st.Entries = []entities.Entry{}
}

// applyBook makes book the active book.
func applyBook(st *State, book *entities.Book) {
	applyMeta(st, entities.BuildMeta(*book, entities.MetaOverrides{}))
	st.Entries = copyEntries(book.Entries)
	st.LorebookName = book.Name
	st.CurrentLorebookID = book.ID
}

// applyMeta merges a library record into the library, appending unknown
// ids.
func applyMeta(st *State, record entities.LibraryRecord) {
	if record.ID == "" {
		return
	}
	meta := entities.BuildMeta(entities.Book{LibraryRecord: record}, entities.MetaOverrides{})

	if idx := entities.FindRecord(st.Library, meta.ID); idx == -1 {
		st.Library = append(st.Library, meta)
	} else {
		st.Library[idx] = meta
	}
	if st.CurrentLorebookID == meta.ID {
		st.LorebookName = meta.Name
	}
}

func copyEntries(entries []entities.Entry) []entities.Entry {
	out := make([]entities.Entry, len(entries))
	copy(out, entries)
	return out
}

func copyLibrary(library []entities.LibraryRecord) []entities.LibraryRecord {
	out := make([]entities.LibraryRecord, len(library))
	copy(out, library)
	return out
}
