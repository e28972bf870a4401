package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Local
		Session
		Remote
		Backup
		CORS
		Store
		Seed
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	// Database is the lorebook service database.
	Database struct {
		Path string
	}
	// Local is the device-local store used while logged out.
	Local struct {
		Path string
	}
	// Session protects the persisted session token.
	Session struct {
		EncryptionKey string // Base64 32-byte key; overrides KeyFile
		KeyFile       string // Empty means a key file next to the local store
	}
	Remote struct {
		APIBase string
		Timeout time.Duration // Zero means no client-side timeout
	}
	Backup struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
		Dir      string
	}
	CORS struct {
		AllowedOrigins []string
	}
	Store struct {
		ImportDelay        time.Duration
		StrictEntryUpdates bool // Fail updates of unknown entry uids instead of ignoring them
	}
	Seed struct {
		Starter bool // Seed a starter lorebook into an empty service database
	}
)

// splitList parses a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 5330)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("loremaster_local_path", DefaultLocalStorePath)
	v.SetDefault("loremaster_session_key", "")
	v.SetDefault("loremaster_session_key_file", "")
	v.SetDefault("loremaster_api_base", DefaultAPIBase)
	v.SetDefault("loremaster_api_timeout", "30s")
	v.SetDefault("backup_enabled", false)
	v.SetDefault("backup_schedule", "0 3 * * *") // Daily at 03:00
	v.SetDefault("backup_dir", "./backups")
	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("import_delay", "800ms")
	v.SetDefault("strict_entry_updates", false)
	v.SetDefault("seed_starter", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Local: Local{
			Path: v.GetString("LOREMASTER_LOCAL_PATH"),
		},
		Session: Session{
			EncryptionKey: v.GetString("LOREMASTER_SESSION_KEY"),
			KeyFile:       v.GetString("LOREMASTER_SESSION_KEY_FILE"),
		},
		Remote: Remote{
			APIBase: v.GetString("LOREMASTER_API_BASE"),
			Timeout: v.GetDuration("LOREMASTER_API_TIMEOUT"),
		},
		Backup: Backup{
			Enabled:  v.GetBool("BACKUP_ENABLED"),
			Schedule: v.GetString("BACKUP_SCHEDULE"),
			Dir:      v.GetString("BACKUP_DIR"),
		},
		CORS: CORS{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Store: Store{
			ImportDelay:        v.GetDuration("IMPORT_DELAY"),
			StrictEntryUpdates: v.GetBool("STRICT_ENTRY_UPDATES"),
		},
		Seed: Seed{
			Starter: v.GetBool("SEED_STARTER"),
		},
	}
}
