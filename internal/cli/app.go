package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/crypto"
	"github.com/mrlokans/loremaster/internal/database"
	kvrepo "github.com/mrlokans/loremaster/internal/database/kv"
	"github.com/mrlokans/loremaster/internal/kv"
	"github.com/mrlokans/loremaster/internal/lorebook"
	"github.com/mrlokans/loremaster/internal/session"
	"github.com/mrlokans/loremaster/internal/storage/local"
	"github.com/mrlokans/loremaster/internal/storage/remote"
)

// App is one CLI invocation's view of the device: the local database, the
// persisted session and, once opened, the lorebook store.
type App struct {
	cfg     *config.Config
	db      *database.Database
	session *session.Session
	store   *lorebook.Store
	out     io.Writer

	failures []string
}

// sessionStore returns the device namespace with the session token sealed.
func sessionStore(cfg *config.Config, device kv.Store) (kv.Store, error) {
	keyFile := cfg.Session.KeyFile
	if keyFile == "" {
		keyFile = filepath.Join(filepath.Dir(cfg.Local.Path), config.SessionKeyFileName)
	}

	key, err := crypto.LoadOrCreateKey(cfg.Session.EncryptionKey, keyFile)
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.NewSealerFromBase64(key)
	if err != nil {
		return nil, err
	}
	return kv.NewSealed(device, sealer, session.TokenKey), nil
}

// openApp opens the device database and restores the session.
func openApp(cfg *config.Config, out io.Writer) (*App, error) {
	db, err := database.NewDatabase(cfg.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	store, err := sessionStore(cfg, kvrepo.NewRepository(db.DB))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to unlock session store: %w", err)
	}

	sess, err := session.New(store)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return &App{cfg: cfg, db: db, session: sess, out: out}, nil
}

// Store builds and hydrates the lorebook store on first use.
func (a *App) Store(ctx context.Context) (*lorebook.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	device := kvrepo.NewRepository(a.db.DB)
	localClient := local.NewClient(device, local.Options{
		StrictEntryUpdates: a.cfg.Store.StrictEntryUpdates,
	})
	remoteClient := remote.NewClient(a.cfg.Remote.APIBase,
		remote.WithTimeout(a.cfg.Remote.Timeout),
		remote.WithTokenSource(a.session.Token),
	)

	store, err := lorebook.New(lorebook.Config{
		Local:       localClient,
		Remote:      remoteClient,
		Session:     a.session,
		Notifier:    lorebook.NotifierFunc(a.notify),
		ImportDelay: a.cfg.Store.ImportDelay,
	})
	if err != nil {
		return nil, err
	}
	store.Start(ctx)
	a.store = store
	return store, nil
}

// notify prints successes and collects failures so the command can exit
// non-zero.
func (a *App) notify(level lorebook.Level, message string) {
	switch level {
	case lorebook.LevelError:
		a.failures = append(a.failures, message)
		log.Printf("CLI: %s", message)
	default:
		fmt.Fprintln(a.out, message)
	}
}

// failed turns the last collected failure into an error.
func (a *App) failed(fallback string) error {
	if n := len(a.failures); n > 0 {
		return fmt.Errorf("%s", a.failures[n-1])
	}
	return fmt.Errorf("%s", fallback)
}

func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing local store: %v", err)
	}
}
