package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/loremaster/internal/database"
	"github.com/mrlokans/loremaster/internal/database/lorebooks"
	"github.com/mrlokans/loremaster/internal/entities"
)

func setupLorebooksRouter(t *testing.T) (*gin.Engine, *lorebooks.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "lorebooks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := lorebooks.NewRepository(db.DB)
	router := NewRouter(RouterConfig{Store: repo, Database: db, Version: "test"})
	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestLorebooksController_CreateAndList(t *testing.T) {
	router, _ := setupLorebooksRouter(t)

	w := doJSON(t, router, "GET", "/lorebooks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, router, "POST", "/lorebooks", `{"name":"Bestiary","entries":{"a":{"comment":"Dragon","key":["dragon"],"order":5}}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var book entities.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	assert.Equal(t, "Bestiary", book.Name)
	assert.Equal(t, 1, book.EntryCount)
	require.Len(t, book.Entries, 1)
	assert.NotZero(t, book.Entries[0].UID)
	assert.Equal(t, "5", string(book.Entries[0].Extra["order"]))

	w = doJSON(t, router, "GET", "/lorebooks", "")
	var library []entities.LibraryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &library))
	require.Len(t, library, 1)
	assert.Equal(t, book.ID, library[0].ID)

	w = doJSON(t, router, "GET", "/active-lorebook", "")
	assert.JSONEq(t, `{"activeId":"`+book.ID+`"}`, w.Body.String())
}

func TestLorebooksController_GetLorebook(t *testing.T) {
	router, repo := setupLorebooksRouter(t)

	book, err := repo.CreateLorebook("Bestiary", nil)
	require.NoError(t, err)

	w := doJSON(t, router, "GET", "/lorebooks/"+book.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":[]`)

	w = doJSON(t, router, "GET", "/lorebooks/book_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Lorebook not found"}`, w.Body.String())
}

func TestLorebooksController_RenameLorebook(t *testing.T) {
	router, repo := setupLorebooksRouter(t)

	book, err := repo.CreateLorebook("Bestiary", nil)
	require.NoError(t, err)

	w := doJSON(t, router, "PATCH", "/lorebooks/"+book.ID, `{"name":"Monster Manual"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var record entities.LibraryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "Monster Manual", record.Name)

	w = doJSON(t, router, "PATCH", "/lorebooks/"+book.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "PATCH", "/lorebooks/book_missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLorebooksController_DeleteLorebook(t *testing.T) {
	router, repo := setupLorebooksRouter(t)

	book, err := repo.CreateLorebook("Only", nil)
	require.NoError(t, err)

	w := doJSON(t, router, "DELETE", "/lorebooks/"+book.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/active-lorebook", "")
	assert.JSONEq(t, `{"activeId":null}`, w.Body.String())

	w = doJSON(t, router, "DELETE", "/lorebooks/"+book.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLorebooksController_Entries(t *testing.T) {
	router, repo := setupLorebooksRouter(t)

	book, err := repo.CreateLorebook("Bestiary", nil)
	require.NoError(t, err)
	base := "/lorebooks/" + book.ID + "/entries"

	w := doJSON(t, router, "POST", base, `{"comment":"Dragon","key":["dragon"],"content":"Breathes fire"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var added entities.EntryMutation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	require.NotNil(t, added.Entry)
	assert.Equal(t, 1, added.Lorebook.EntryCount)
	assert.True(t, added.Entry.Enabled)
	uid := added.Entry.UID

	w = doJSON(t, router, "PUT", base+"/"+jsonInt(uid), `{"comment":"Dragon","content":"Breathes ice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var updated entities.EntryMutation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, uid, updated.Entry.UID)
	assert.Equal(t, "Breathes ice", updated.Entry.Content)

	w = doJSON(t, router, "PUT", base+"/424242", `{"comment":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Entry not found"}`, w.Body.String())

	w = doJSON(t, router, "PUT", base+"/not-a-number", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "DELETE", base+"/"+jsonInt(uid), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entry":null`)

	var deleted entities.EntryMutation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deleted))
	assert.Equal(t, 0, deleted.Lorebook.EntryCount)

	w = doJSON(t, router, "POST", "/lorebooks/book_missing/entries", `{"comment":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLorebooksController_ActivePointer(t *testing.T) {
	router, repo := setupLorebooksRouter(t)

	first, err := repo.CreateLorebook("First", nil)
	require.NoError(t, err)
	second, err := repo.CreateLorebook("Second", nil)
	require.NoError(t, err)

	w := doJSON(t, router, "PUT", "/active-lorebook/"+second.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"activeId":"`+second.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "PUT", "/active-lorebook/book_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "DELETE", "/active-lorebook", "")
	assert.JSONEq(t, `{"activeId":null}`, w.Body.String())

	active, err := repo.ActiveID()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NotEqual(t, first.ID, second.ID)
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
