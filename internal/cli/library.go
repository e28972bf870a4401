package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/exporters"
	"github.com/mrlokans/loremaster/internal/lorebook"
)

var (
	ErrUnknownLorebook   = errors.New("no lorebook matches")
	ErrAmbiguousLorebook = errors.New("more than one lorebook has that name")
	ErrNoActiveLorebook  = errors.New("no lorebook is open")
)

// resolveBook finds a lorebook by id, then by case-insensitive name.
func resolveBook(library []entities.LibraryRecord, ref string) (entities.LibraryRecord, error) {
	if i := entities.FindRecord(library, ref); i != -1 {
		return library[i], nil
	}

	var found []entities.LibraryRecord
	for _, record := range library {
		if strings.EqualFold(record.Name, ref) {
			found = append(found, record)
		}
	}
	switch len(found) {
	case 0:
		return entities.LibraryRecord{}, fmt.Errorf("%w %q", ErrUnknownLorebook, ref)
	case 1:
		return found[0], nil
	default:
		return entities.LibraryRecord{}, fmt.Errorf("%w: %q", ErrAmbiguousLorebook, ref)
	}
}

// activeRecord returns the library record of the open lorebook.
func activeRecord(state lorebook.State) (entities.LibraryRecord, error) {
	if i := entities.FindRecord(state.Library, state.CurrentLorebookID); i != -1 {
		return state.Library[i], nil
	}
	return entities.LibraryRecord{}, ErrNoActiveLorebook
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func printLibrary(w io.Writer, state lorebook.State) {
	if len(state.Library) == 0 {
		fmt.Fprintln(w, "No lorebooks yet. Create one with 'loremaster create <name>'.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tENTRIES\tLAST EDITED")
	for _, record := range state.Library {
		marker := ""
		if record.ID == state.CurrentLorebookID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", marker, record.ID, record.Name, record.EntryCount, formatTime(record.LastEdited))
	}
	tw.Flush()
}

func newLibraryCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "library",
		Aliases: []string{"ls"},
		Short:   "List lorebooks, most recently edited first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				printLibrary(app.out, store.Snapshot())
				return nil
			})
		},
	}
}

func newCreateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a lorebook and open it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			}
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				id := store.CreateLorebook(cmd.Context(), name, nil)
				if id == "" {
					return app.failed("failed to create lorebook")
				}
				fmt.Fprintln(app.out, id)
				return nil
			})
		},
	}
}

func newOpenCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id|name>",
		Short: "Make a lorebook the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				record, err := resolveBook(store.Snapshot().Library, args[0])
				if err != nil {
					return err
				}
				if !store.LoadBook(cmd.Context(), record.ID) {
					return app.failed("failed to load lorebook")
				}
				fmt.Fprintf(app.out, "Opened %q (%d entries)\n", record.Name, len(store.Snapshot().Entries))
				return nil
			})
		},
	}
}

func newRenameCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id|name> <new name>",
		Short: "Rename a lorebook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("new name must not be empty")
			}
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				record, err := resolveBook(store.Snapshot().Library, args[0])
				if err != nil {
					return err
				}
				if !store.RenameLorebook(cmd.Context(), record.ID, name) {
					return app.failed("failed to rename lorebook")
				}
				fmt.Fprintf(app.out, "Renamed %q to %q\n", record.Name, name)
				return nil
			})
		},
	}
}

func newDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a lorebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				record, err := resolveBook(store.Snapshot().Library, args[0])
				if err != nil {
					return err
				}
				if !store.DeleteLorebook(cmd.Context(), record.ID) {
					return app.failed("failed to delete lorebook")
				}
				return nil
			})
		},
	}
}

func newImportCommand(cfg *config.Config) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a lorebook JSON document as a new lorebook",
		Long: "Import a lorebook JSON document as a new lorebook.\n\n" +
			"The document may be {\"name\": ..., \"entries\": ...} with entries as an\n" +
			"array or a keyed object, or a bare array of entries. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				id := store.LoadLorebook(cmd.Context(), data, strings.TrimSpace(name))
				if id == "" {
					return app.failed("failed to import lorebook")
				}
				fmt.Fprintln(app.out, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the new lorebook (defaults to the document's name)")
	return cmd
}

func newExportCommand(cfg *config.Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the open lorebook as an importable JSON document",
		Long: "Export the open lorebook as an importable JSON document.\n\n" +
			"Without --dir the document is written to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := app.Store(cmd.Context())
				if err != nil {
					return err
				}
				state := store.Snapshot()
				record, err := activeRecord(state)
				if err != nil {
					return err
				}
				book := entities.Book{LibraryRecord: record, Entries: state.Entries}

				if dir == "" {
					return exporters.EncodeBook(app.out, book)
				}
				path, err := exporters.NewJSONExporter(dir).ExportBook(book)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.out, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to write the export file into")
	return cmd
}
