package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(cfg.AllowedOrigins))
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	lorebooks := NewLorebooksController(cfg.Store)

	// Health endpoints
	router.GET("/", health.Root)
	router.GET("/health", health.Status)

	// Library endpoints
	router.GET("/lorebooks", lorebooks.ListLorebooks)
	router.POST("/lorebooks", lorebooks.CreateLorebook)
	router.GET("/lorebooks/:id", lorebooks.GetLorebook)
	router.PATCH("/lorebooks/:id", lorebooks.RenameLorebook)
	router.DELETE("/lorebooks/:id", lorebooks.DeleteLorebook)

	// Entry endpoints
	router.POST("/lorebooks/:id/entries", lorebooks.AddEntry)
	router.PUT("/lorebooks/:id/entries/:uid", lorebooks.UpdateEntry)
	router.DELETE("/lorebooks/:id/entries/:uid", lorebooks.DeleteEntry)

	// Active pointer endpoints
	router.GET("/active-lorebook", lorebooks.GetActive)
	router.PUT("/active-lorebook/:id", lorebooks.SetActive)
	router.DELETE("/active-lorebook", lorebooks.ClearActive)

	return router
}
