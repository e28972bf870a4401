package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/loremaster/internal/cli"
	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cfg := config.NewConfig()
	root := cli.NewRootCommand(cfg, fmt.Sprintf("%s (%s)", Version, Commit), entrypoint.Run)

	// No arguments runs the HTTP server, as before subcommands existed
	if len(os.Args) < 2 {
		root.SetArgs([]string{"serve"})
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
