package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the lorebook service database
	DefaultDatabasePath = "./loremaster.db"

	// DefaultLocalStorePath is the default path for the device-local key-value store
	DefaultLocalStorePath = "./loremaster-local.db"

	// SessionKeyFileName is the session key file created next to the local store
	SessionKeyFileName = ".loremaster-session-key"

	// DefaultAPIBase is where the lorebook service listens by default
	DefaultAPIBase = "http://127.0.0.1:5330"
)
