package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/loremaster/internal/entities"
)

// --- Response Types ---

// ErrorResponse is the error body of every API failure. Clients read the
// message from detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is returned by the root endpoint.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse acknowledges a deletion.
type StatusResponse struct {
	Status string `json:"status"`
}

// ActiveResponse carries the active lorebook pointer. A nil ActiveID encodes
// as null.
type ActiveResponse struct {
	ActiveID *string `json:"activeId"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Detail: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
}

// respondStoreError maps repository errors onto 404s and everything else
// onto a 500.
func respondStoreError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, entities.ErrEntryNotFound):
		respondNotFound(c, "Entry")
	case errors.Is(err, entities.ErrLorebookNotFound):
		respondNotFound(c, "Lorebook")
	default:
		respondInternalError(c, err, context)
	}
}

// --- Success Response Helpers ---

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondActive sends the active pointer, encoding "" as null.
func respondActive(c *gin.Context, id string) {
	resp := ActiveResponse{}
	if id != "" {
		resp.ActiveID = &id
	}
	c.JSON(http.StatusOK, resp)
}

// --- Parameter Parsing ---

// parseUIDParam extracts an entry uid from URL parameters.
// Returns the parsed uid or responds with a 400 error and returns 0, false.
func parseUIDParam(c *gin.Context, paramName string) (int64, bool) {
	uid, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uid, true
}
