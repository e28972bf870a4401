package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/crypto"
	"github.com/mrlokans/loremaster/internal/database"
	kvrepo "github.com/mrlokans/loremaster/internal/database/kv"
	"github.com/mrlokans/loremaster/internal/database/lorebooks"
	"github.com/mrlokans/loremaster/internal/entities"
	lorehttp "github.com/mrlokans/loremaster/internal/http"
	"github.com/mrlokans/loremaster/internal/session"
	"github.com/mrlokans/loremaster/internal/storage/local"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Local:  config.Local{Path: filepath.Join(t.TempDir(), "device.db")},
		Remote: config.Remote{APIBase: "http://127.0.0.1:1", Timeout: 5 * time.Second},
		Store:  config.Store{ImportDelay: time.Millisecond},
	}
}

// runCLI executes one command against a fresh command tree, the way a
// separate process would.
func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	local := *cfg
	root := NewRootCommand(&local, "test", func(*config.Config, string) {
		t.Fatal("serve must not run")
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()
	out, err := runCLI(t, cfg, args...)
	require.NoError(t, err, "loremaster %s", strings.Join(args, " "))
	return out
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func TestCLI_LocalLifecycle(t *testing.T) {
	cfg := testConfig(t)

	out := mustRun(t, cfg, "library")
	assert.Contains(t, out, "No lorebooks yet")

	out = mustRun(t, cfg, "create", "Bestiary")
	assert.Contains(t, out, `Created lorebook "Bestiary"`)
	bookID := lastLine(out)
	assert.True(t, strings.HasPrefix(bookID, "book_"))

	out = mustRun(t, cfg, "library")
	assert.Contains(t, out, bookID)
	assert.Contains(t, out, "Bestiary")
	assert.Contains(t, out, "*")

	uid := lastLine(mustRun(t, cfg, "entry", "add",
		"--comment", "Dragon", "--key", "dragon,wyrm", "--content", "Breathes fire"))
	assert.NotEqual(t, "0", uid)
	mustRun(t, cfg, "entry", "add", "--comment", "Goblin", "--key", "goblin", "--content", "Small and green")

	out = mustRun(t, cfg, "search", "WYRM")
	assert.Contains(t, out, "Dragon")
	assert.NotContains(t, out, "Goblin")

	out = mustRun(t, cfg, "search", "void")
	assert.Contains(t, out, "No entries.")

	out = mustRun(t, cfg, "stats")
	assert.Contains(t, out, "Lorebook: Bestiary")
	assert.Contains(t, out, "Entries:  2")
	assert.Contains(t, out, "Constant: 0")

	mustRun(t, cfg, "entry", "update", uid, "--content", "Breathes ice", "--constant")
	out = mustRun(t, cfg, "stats")
	assert.Contains(t, out, "Constant: 1")

	out = mustRun(t, cfg, "export")
	doc := entities.ParseImport([]byte(out))
	assert.Equal(t, "Bestiary", doc.Name)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "Breathes ice", doc.Entries[0].Content)
	assert.Equal(t, []string{"dragon", "wyrm"}, doc.Entries[0].Key)
	assert.Equal(t, "Goblin", doc.Entries[1].Comment)

	mustRun(t, cfg, "entry", "delete", uid)
	out = mustRun(t, cfg, "search")
	assert.NotContains(t, out, "Dragon")
	assert.Contains(t, out, "Goblin")

	mustRun(t, cfg, "rename", "bestiary", "Monster Manual")
	out = mustRun(t, cfg, "status")
	assert.Contains(t, out, "logged out")
	assert.Contains(t, out, "Open:     Monster Manual (1 entries)")

	mustRun(t, cfg, "delete", bookID)
	out = mustRun(t, cfg, "status")
	assert.Contains(t, out, "Library:  0 lorebooks")
	assert.Contains(t, out, "Open:     none")
}

func TestCLI_OpenSwitchesActiveLorebook(t *testing.T) {
	cfg := testConfig(t)

	mustRun(t, cfg, "create", "First")
	mustRun(t, cfg, "create", "Second")

	out := mustRun(t, cfg, "open", "first")
	assert.Contains(t, out, `Opened "First"`)

	out = mustRun(t, cfg, "status")
	assert.Contains(t, out, "Open:     First")

	out = mustRun(t, cfg, "export")
	assert.Contains(t, out, `"name": "First"`)
}

func TestCLI_Import(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "world.json")
	payload := `{"name": "World Info", "entries": {"0": {"comment": "A", "key": ["a"], "order": 100}, "1": {"comment": "B", "key": "b"}}}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	t.Run("name from document", func(t *testing.T) {
		out := mustRun(t, cfg, "import", path)
		assert.Contains(t, out, `Created lorebook "World Info"`)

		out = mustRun(t, cfg, "export")
		doc := entities.ParseImport([]byte(out))
		require.Len(t, doc.Entries, 2)
		assert.Equal(t, "A", doc.Entries[0].Comment)
		assert.Equal(t, "100", string(doc.Entries[0].Extra["order"]))
		assert.Equal(t, []string{"b"}, doc.Entries[1].Key)
	})

	t.Run("name flag wins", func(t *testing.T) {
		out := mustRun(t, cfg, "import", path, "--name", "Renamed")
		assert.Contains(t, out, `Created lorebook "Renamed"`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, cfg, "import", filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, err, "failed to read import file")
	})
}

func TestCLI_ExportToDirectory(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	id := lastLine(mustRun(t, cfg, "create", "Bestiary"))
	path := lastLine(mustRun(t, cfg, "export", "--dir", dir))
	assert.Equal(t, filepath.Join(dir, "Bestiary_"+id+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Bestiary", entities.ParseImport(data).Name)
}

func TestCLI_Errors(t *testing.T) {
	cfg := testConfig(t)

	_, err := runCLI(t, cfg, "entry", "add", "--comment", "x")
	assert.ErrorIs(t, err, ErrNoActiveLorebook)

	_, err = runCLI(t, cfg, "export")
	assert.ErrorIs(t, err, ErrNoActiveLorebook)

	_, err = runCLI(t, cfg, "open", "Nothing")
	assert.ErrorIs(t, err, ErrUnknownLorebook)

	mustRun(t, cfg, "create", "Bestiary")

	_, err = runCLI(t, cfg, "entry", "update", "42", "--content", "x")
	assert.ErrorIs(t, err, ErrUnknownEntry)

	_, err = runCLI(t, cfg, "entry", "delete", "abc")
	assert.ErrorContains(t, err, `invalid entry uid "abc"`)

	_, err = runCLI(t, cfg, "rename", "Bestiary", "  ")
	assert.ErrorContains(t, err, "new name must not be empty")

	_, err = runCLI(t, cfg, "login")
	assert.Error(t, err)
}

func TestResolveBook(t *testing.T) {
	library := []entities.LibraryRecord{
		{ID: "book_1", Name: "Bestiary"},
		{ID: "book_2", Name: "Atlas"},
		{ID: "book_3", Name: "atlas"},
	}

	record, err := resolveBook(library, "book_2")
	require.NoError(t, err)
	assert.Equal(t, "Atlas", record.Name)

	record, err = resolveBook(library, "BESTIARY")
	require.NoError(t, err)
	assert.Equal(t, "book_1", record.ID)

	_, err = resolveBook(library, "Atlas")
	assert.ErrorIs(t, err, ErrAmbiguousLorebook)

	_, err = resolveBook(library, "Codex")
	assert.ErrorIs(t, err, ErrUnknownLorebook)
}

func setupService(t *testing.T) (string, *lorebooks.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := lorebooks.NewRepository(db.DB)
	server := httptest.NewServer(lorehttp.NewRouter(lorehttp.RouterConfig{Store: repo, Database: db}))
	t.Cleanup(server.Close)
	return server.URL, repo
}

func TestCLI_SessionSelectsStorage(t *testing.T) {
	cfg := testConfig(t)
	apiBase, repo := setupService(t)
	cfg.Remote.APIBase = apiBase

	mustRun(t, cfg, "create", "Device Book")

	out := mustRun(t, cfg, "status")
	assert.Contains(t, out, "Storage:  local")

	out = mustRun(t, cfg, "login", "--token", "secret", "--username", "ann")
	assert.Contains(t, out, "Logged in as ann")

	out = mustRun(t, cfg, "status")
	assert.Contains(t, out, "logged in as ann")
	assert.Contains(t, out, "Storage:  remote ("+apiBase+")")
	assert.Contains(t, out, "Library:  0 lorebooks")

	id := lastLine(mustRun(t, cfg, "create", "Service Book"))
	mustRun(t, cfg, "entry", "add", "--comment", "Dragon", "--key", "dragon")

	library, err := repo.ListLibrary()
	require.NoError(t, err)
	require.Len(t, library, 1)
	assert.Equal(t, id, library[0].ID)
	assert.Equal(t, 1, library[0].EntryCount)

	active, err := repo.ActiveID()
	require.NoError(t, err)
	assert.Equal(t, id, active)

	out = mustRun(t, cfg, "logout")
	assert.Contains(t, out, "Logged out")

	out = mustRun(t, cfg, "library")
	assert.Contains(t, out, "Device Book")
	assert.NotContains(t, out, "Service Book")
}

func TestCLI_SessionTokenIsSealedAtRest(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Bestiary")
	mustRun(t, cfg, "login", "--token", "secret-token")

	_, err := os.Stat(filepath.Join(filepath.Dir(cfg.Local.Path), config.SessionKeyFileName))
	require.NoError(t, err)

	db, err := database.NewDatabase(cfg.Local.Path)
	require.NoError(t, err)
	device := kvrepo.NewRepository(db.DB)
	raw, ok, err := device.Get(session.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, crypto.IsSealed(raw))
	assert.NotContains(t, raw, "secret-token")

	// Lorebook data stays plain JSON.
	library, ok, err := device.Get(local.LibraryKey)
	require.NoError(t, db.Close())
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, crypto.IsSealed(library))
	assert.Contains(t, library, `"Bestiary"`)

	out := mustRun(t, cfg, "status")
	assert.Contains(t, out, "logged in as unknown user")
}
