package http

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Store    LorebookStore
	Database Pinger

	// Origins allowed to call the API from a browser
	AllowedOrigins []string

	// Application info
	Version string
}
