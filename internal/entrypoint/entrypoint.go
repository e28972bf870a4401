package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/database"
	kvrepo "github.com/mrlokans/loremaster/internal/database/kv"
	"github.com/mrlokans/loremaster/internal/database/lorebooks"
	"github.com/mrlokans/loremaster/internal/exporters"
	http_controllers "github.com/mrlokans/loremaster/internal/http"
	"github.com/mrlokans/loremaster/internal/scheduler"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT. SIGKILL can't be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run starts the lorebook service and blocks until it is told to stop.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Loremaster v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	repo := lorebooks.NewRepository(db.DB)
	if cfg.Seed.Starter {
		if err := repo.SeedStarter(); err != nil {
			log.Printf("WARNING: Failed to seed starter lorebook: %v", err)
		}
	}

	// Periodic JSON backups of every lorebook, with the last outcome kept
	// in the settings table.
	backups := scheduler.NewBackupScheduler(
		exporters.NewLibraryExporter(repo, exporters.NewJSONExporter(cfg.Backup.Dir)),
		kvrepo.NewRepository(db.DB),
		scheduler.BackupConfig{
			Enabled:  cfg.Backup.Enabled,
			Schedule: cfg.Backup.Schedule,
		},
	)
	backupCtx, backupCancel := context.WithCancel(context.Background())
	if err := backups.Start(backupCtx); err != nil {
		log.Printf("WARNING: Backup scheduler not started: %v", err)
	} else if next := backups.GetNextRunTime(); next != nil {
		log.Printf("Next lorebook backup to %s at %s", cfg.Backup.Dir, next.Format(time.RFC3339))
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		log.Printf("CORS enabled for %v", cfg.CORS.AllowedOrigins)
	}

	routerCfg := http_controllers.RouterConfig{
		Store:          repo,
		Database:       db,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		backups.Stop()
		backupCancel()
	}

	Serve(router, cfg, onShutdown)
}
