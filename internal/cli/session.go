package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/session"
)

func newLoginCommand(cfg *config.Config) *cobra.Command {
	var token, username, userJSON string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token so lorebooks are kept on the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := session.User{}
			if userJSON != "" {
				if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
					return fmt.Errorf("user profile must be a JSON object: %w", err)
				}
			}
			if username != "" {
				user["username"] = username
			}

			return withApp(cmd, cfg, func(app *App) error {
				if err := app.session.Login(strings.TrimSpace(token), user); err != nil {
					return err
				}
				if name := user.Name(); name != "" {
					fmt.Fprintf(app.out, "Logged in as %s\n", name)
				} else {
					fmt.Fprintln(app.out, "Logged in")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Session token issued by the service (required)")
	cmd.Flags().StringVar(&username, "username", "", "Display name to remember")
	cmd.Flags().StringVar(&userJSON, "user", "", "Full user profile as a JSON object")
	cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token and go back to local lorebooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				if err := app.session.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(app.out, "Logged out")
				return nil
			})
		},
	}
}

func newStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, storage mode and open lorebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				mode := session.ModeFor(app.session.IsLoggedIn())
				if mode == session.ModeRemote {
					fmt.Fprintf(app.out, "Session:  logged in as %s\n", displayName(app.session.User()))
					fmt.Fprintf(app.out, "Storage:  %s (%s)\n", mode, cfg.Remote.APIBase)
				} else {
					fmt.Fprintln(app.out, "Session:  logged out")
					fmt.Fprintf(app.out, "Storage:  %s (%s)\n", mode, cfg.Local.Path)
				}

				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				state := store.Snapshot()
				fmt.Fprintf(app.out, "Library:  %d lorebooks\n", len(state.Library))
				if state.CurrentLorebookID != "" {
					fmt.Fprintf(app.out, "Open:     %s (%d entries)\n", state.LorebookName, len(state.Entries))
				} else {
					fmt.Fprintln(app.out, "Open:     none")
				}
				return nil
			})
		},
	}
}

func displayName(user session.User) string {
	if name := user.Name(); name != "" {
		return name
	}
	return "unknown user"
}
