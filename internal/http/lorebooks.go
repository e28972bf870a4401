package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/loremaster/internal/entities"
)

// LorebookStore defines database operations behind the lorebook API.
type LorebookStore interface {
	ListLibrary() ([]entities.LibraryRecord, error)
	GetLorebook(id string) (*entities.Book, error)
	CreateLorebook(name string, entries []entities.Entry) (*entities.Book, error)
	RenameLorebook(id, name string) (*entities.LibraryRecord, error)
	DeleteLorebook(id string) error
	AddEntry(id string, entry entities.Entry) (*entities.EntryMutation, error)
	UpdateEntry(id string, uid int64, entry entities.Entry) (*entities.EntryMutation, error)
	DeleteEntry(id string, uid int64) (*entities.EntryMutation, error)
	ActiveID() (string, error)
	SetActive(id string) error
	ClearActive() error
}

type LorebooksController struct {
	store LorebookStore
}

func NewLorebooksController(store LorebookStore) *LorebooksController {
	return &LorebooksController{store: store}
}

type createLorebookRequest struct {
	Name    string           `json:"name"`
	Entries entities.Entries `json:"entries"`
}

type renameLorebookRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListLorebooks returns the library
// GET /lorebooks
func (lc *LorebooksController) ListLorebooks(c *gin.Context) {
	library, err := lc.store.ListLibrary()
	if err != nil {
		respondInternalError(c, err, "list lorebooks")
		return
	}
	c.JSON(http.StatusOK, library)
}

// GetLorebook returns one lorebook with its entries
// GET /lorebooks/:id
func (lc *LorebooksController) GetLorebook(c *gin.Context) {
	book, err := lc.store.GetLorebook(c.Param("id"))
	if err != nil {
		respondStoreError(c, err, "get lorebook")
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateLorebook creates a lorebook, optionally with initial entries
// POST /lorebooks
func (lc *LorebooksController) CreateLorebook(c *gin.Context) {
	var req createLorebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid lorebook payload")
		return
	}

	book, err := lc.store.CreateLorebook(strings.TrimSpace(req.Name), req.Entries)
	if err != nil {
		respondInternalError(c, err, "create lorebook")
		return
	}
	respondCreated(c, book)
}

// RenameLorebook changes a lorebook name
// PATCH /lorebooks/:id
func (lc *LorebooksController) RenameLorebook(c *gin.Context) {
	var req renameLorebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	record, err := lc.store.RenameLorebook(c.Param("id"), req.Name)
	if err != nil {
		respondStoreError(c, err, "rename lorebook")
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteLorebook removes a lorebook and its entries
// DELETE /lorebooks/:id
func (lc *LorebooksController) DeleteLorebook(c *gin.Context) {
	if err := lc.store.DeleteLorebook(c.Param("id")); err != nil {
		respondStoreError(c, err, "delete lorebook")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "deleted"})
}

// AddEntry appends an entry
// POST /lorebooks/:id/entries
func (lc *LorebooksController) AddEntry(c *gin.Context) {
	var entry entities.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		respondBadRequest(c, "invalid entry payload")
		return
	}

	mutation, err := lc.store.AddEntry(c.Param("id"), entry)
	if err != nil {
		respondStoreError(c, err, "add entry")
		return
	}
	respondCreated(c, mutation)
}

// UpdateEntry replaces an entry
// PUT /lorebooks/:id/entries/:uid
func (lc *LorebooksController) UpdateEntry(c *gin.Context) {
	uid, ok := parseUIDParam(c, "uid")
	if !ok {
		return
	}

	var entry entities.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		respondBadRequest(c, "invalid entry payload")
		return
	}

	mutation, err := lc.store.UpdateEntry(c.Param("id"), uid, entry)
	if err != nil {
		respondStoreError(c, err, "update entry")
		return
	}
	c.JSON(http.StatusOK, mutation)
}

// DeleteEntry removes an entry
// DELETE /lorebooks/:id/entries/:uid
func (lc *LorebooksController) DeleteEntry(c *gin.Context) {
	uid, ok := parseUIDParam(c, "uid")
	if !ok {
		return
	}

	mutation, err := lc.store.DeleteEntry(c.Param("id"), uid)
	if err != nil {
		respondStoreError(c, err, "delete entry")
		return
	}
	c.JSON(http.StatusOK, mutation)
}

// GetActive returns the active lorebook pointer
// GET /active-lorebook
func (lc *LorebooksController) GetActive(c *gin.Context) {
	id, err := lc.store.ActiveID()
	if err != nil {
		respondInternalError(c, err, "get active lorebook")
		return
	}
	respondActive(c, id)
}

// SetActive moves the active lorebook pointer
// PUT /active-lorebook/:id
func (lc *LorebooksController) SetActive(c *gin.Context) {
	id := c.Param("id")
	if err := lc.store.SetActive(id); err != nil {
		respondStoreError(c, err, "set active lorebook")
		return
	}
	respondActive(c, id)
}

// ClearActive removes the active lorebook pointer
// DELETE /active-lorebook
func (lc *LorebooksController) ClearActive(c *gin.Context) {
	if err := lc.store.ClearActive(); err != nil {
		respondInternalError(c, err, "clear active lorebook")
		return
	}
	respondActive(c, "")
}
