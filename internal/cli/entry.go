package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mrlokans/loremaster/internal/config"
	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/lorebook"
)

var ErrUnknownEntry = errors.New("no entry with that uid in the open lorebook")

// entryFlags holds the editable fields of an entry. Only flags the user set
// are applied.
type entryFlags struct {
	comment      string
	content      string
	key          []string
	keySecondary []string
	enabled      bool
	constant     bool
	selective    bool
}

func (f *entryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.comment, "comment", "", "Entry title")
	fs.StringVar(&f.content, "content", "", "Entry text")
	fs.StringSliceVar(&f.key, "key", nil, "Trigger keywords (comma separated or repeated)")
	fs.StringSliceVar(&f.keySecondary, "keysecondary", nil, "Secondary keywords")
	fs.BoolVar(&f.enabled, "enabled", true, "Whether the entry is enabled")
	fs.BoolVar(&f.constant, "constant", false, "Always include the entry")
	fs.BoolVar(&f.selective, "selective", true, "Require a secondary keyword match")
}

func (f *entryFlags) apply(fs *pflag.FlagSet, entry *entities.Entry) {
	if fs.Changed("comment") {
		entry.Comment = f.comment
	}
	if fs.Changed("content") {
		entry.Content = f.content
	}
	if fs.Changed("key") {
		entry.Key = trimAll(f.key)
	}
	if fs.Changed("keysecondary") {
		entry.KeySecondary = trimAll(f.keySecondary)
	}
	if fs.Changed("enabled") {
		entry.Enabled = f.enabled
	}
	if fs.Changed("constant") {
		entry.Constant = f.constant
	}
	if fs.Changed("selective") {
		entry.Selective = f.selective
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseUID(raw string) (int64, error) {
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry uid %q", raw)
	}
	return uid, nil
}

func findEntry(entries []entities.Entry, uid int64) (entities.Entry, bool) {
	for _, e := range entries {
		if e.UID == uid {
			return e, true
		}
	}
	return entities.Entry{}, false
}

// openStore hydrates the store and requires an open lorebook.
func openStore(cmd *cobra.Command, app *App) (*lorebook.Store, error) {
	store, err := app.Store(cmd.Context())
	if err != nil {
		return nil, err
	}
	if !store.HasLorebook() {
		return nil, ErrNoActiveLorebook
	}
	return store, nil
}

func newEntryCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Add, update or delete entries of the open lorebook",
	}
	cmd.AddCommand(
		newEntryAddCommand(cfg),
		newEntryUpdateCommand(cfg),
		newEntryDeleteCommand(cfg),
	)
	return cmd
}

func newEntryAddCommand(cfg *config.Config) *cobra.Command {
	var fields entryFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an entry to the open lorebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := openStore(cmd, app)
				if err != nil {
					return err
				}
				entry := entities.NewEntry()
				entry.Key = []string{}
				entry.KeySecondary = []string{}
				fields.apply(cmd.Flags(), &entry)

				stored, ok := store.AddEntry(cmd.Context(), entry)
				if !ok {
					return app.failed("failed to add entry")
				}
				fmt.Fprintln(app.out, stored.UID)
				return nil
			})
		},
	}
	fields.register(cmd.Flags())
	return cmd
}

func newEntryUpdateCommand(cfg *config.Config) *cobra.Command {
	var fields entryFlags

	cmd := &cobra.Command{
		Use:   "update <uid>",
		Short: "Change fields of an entry in the open lorebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, cfg, func(app *App) error {
				store, err := openStore(cmd, app)
				if err != nil {
					return err
				}
				entry, ok := findEntry(store.Snapshot().Entries, uid)
				if !ok {
					return fmt.Errorf("%w: %d", ErrUnknownEntry, uid)
				}
				fields.apply(cmd.Flags(), &entry)

				if !store.UpdateEntry(cmd.Context(), entry) {
					return app.failed("failed to update entry")
				}
				return nil
			})
		},
	}
	fields.register(cmd.Flags())
	return cmd
}

func newEntryDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete an entry from the open lorebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, cfg, func(app *App) error {
				store, err := openStore(cmd, app)
				if err != nil {
					return err
				}
				if !store.DeleteEntry(cmd.Context(), uid) {
					return app.failed("failed to delete entry")
				}
				return nil
			})
		},
	}
}

func printEntries(w io.Writer, entries []entities.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tCOMMENT\tKEYS\tFLAGS")
	for _, e := range entries {
		var flags []string
		if !e.Enabled {
			flags = append(flags, "disabled")
		}
		if e.Constant {
			flags = append(flags, "constant")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.UID, e.Comment, strings.Join(e.Key, ", "), strings.Join(flags, " "))
	}
	tw.Flush()
}

func newSearchCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "List entries of the open lorebook matching a query",
		Long: "List entries of the open lorebook whose comment, content or any key\n" +
			"contains the query, ignoring case. Without a query every entry is listed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := openStore(cmd, app)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					store.SetSearchQuery(args[0])
				}
				printEntries(app.out, store.FilteredEntries())
				return nil
			})
		},
	}
}

func newStatsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry statistics of the open lorebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(app *App) error {
				store, err := openStore(cmd, app)
				if err != nil {
					return err
				}
				state := store.Snapshot()
				stats := store.Stats()
				fmt.Fprintf(app.out, "Lorebook: %s\n", state.LorebookName)
				fmt.Fprintf(app.out, "Entries:  %d\n", stats.Total)
				fmt.Fprintf(app.out, "Enabled:  %d\n", stats.Active)
				fmt.Fprintf(app.out, "Constant: %d\n", stats.Constant)
				fmt.Fprintf(app.out, "Tokens:   ~%d\n", stats.Tokens)
				return nil
			})
		},
	}
}
