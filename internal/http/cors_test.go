package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCORSRouter(origins ...string) *gin.Engine {
	router := gin.New()
	router.Use(CORSMiddleware(origins))
	router.GET("/lorebooks", func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{})
	})
	return router
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("allowed origin is echoed", func(t *testing.T) {
		router := newCORSRouter("http://localhost:5173/")

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/lorebooks", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		router := newCORSRouter("http://localhost:5173")

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/lorebooks", nil)
		req.Header.Set("Origin", "https://evil.example")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows any origin", func(t *testing.T) {
		router := newCORSRouter("*")

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/lorebooks", nil)
		req.Header.Set("Origin", "https://app.example")
		router.ServeHTTP(w, req)

		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered without reaching handlers", func(t *testing.T) {
		router := newCORSRouter("http://localhost:5173")

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("OPTIONS", "/lorebooks", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "PUT")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})
}
