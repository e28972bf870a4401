// Package cli is the loremaster command line. Each command opens the device
// store, hydrates the lorebook store for the current session, runs one
// operation and prints the resulting view.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/loremaster/internal/config"
)

// NewRootCommand builds the command tree. serve runs the lorebook service
// with the given version.
func NewRootCommand(cfg *config.Config, version string, serve func(*config.Config, string)) *cobra.Command {
	root := &cobra.Command{
		Use:           "loremaster",
		Short:         "Manage lorebooks locally or against a lorebook service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Local.Path, "local-path", cfg.Local.Path, "Path to the device-local store")
	flags.StringVar(&cfg.Remote.APIBase, "api-base", cfg.Remote.APIBase, "Base URL of the lorebook service used while logged in")

	root.AddCommand(
		newServeCommand(cfg, version, serve),
		newLibraryCommand(cfg),
		newCreateCommand(cfg),
		newOpenCommand(cfg),
		newRenameCommand(cfg),
		newDeleteCommand(cfg),
		newImportCommand(cfg),
		newExportCommand(cfg),
		newEntryCommand(cfg),
		newSearchCommand(cfg),
		newStatsCommand(cfg),
		newLoginCommand(cfg),
		newLogoutCommand(cfg),
		newStatusCommand(cfg),
	)

	return root
}

func newServeCommand(cfg *config.Config, version string, serve func(*config.Config, string)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lorebook service",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			serve(cfg, version)
		},
	}
	cmd.Flags().Int32Var(&cfg.HTTP.Port, "port", cfg.HTTP.Port, "Port to listen on")
	cmd.Flags().StringVar(&cfg.HTTP.Host, "host", cfg.HTTP.Host, "Host to listen on")
	cmd.Flags().StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "Path to the service database")
	return cmd
}

// withApp opens the device store for the duration of fn.
func withApp(cmd *cobra.Command, cfg *config.Config, fn func(app *App) error) error {
	app, err := openApp(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
