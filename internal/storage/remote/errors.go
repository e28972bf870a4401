package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mrlokans/loremaster/internal/entities"
)

// ErrTransport indicates the service could not be reached or its response
// could not be read.
var ErrTransport = errors.New("lorebook service unreachable")

// APIError is a non-2xx response from the lorebook service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lorebook service error: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets a 404 match entities.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == entities.ErrNotFound && e.StatusCode == http.StatusNotFound
}
