package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"modbot/config"
	"modbot/modules/db"
)

func newRootCmd() *cobra.Command {
	var dbPath string

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return cfg, nil
	}

	// withStore opens the database for the offline subcommands.
	withStore := func(fn func(*db.DB, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(store, cmd, args)
		}
	}

	run := func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBot(cfg)
	}

	root := &cobra.Command{
		Use:           "modbot",
		Short:         "Group moderation bot",
		SilenceUsage:  true,
		RunE:          run,
		Args:          cobra.NoArgs,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides DB_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE:  run,
	})

	var (
		chat   string
		out    string
		file   string
		fromID string
		toID   string
	)

	export := &cobra.Command{
		Use:   "export --chat <id>",
		Short: "Write a chat's backup as JSON",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *db.DB, cmd *cobra.Command, _ []string) error {
			chatID, err := parseChatID(chat)
			if err != nil {
				return err
			}
			return exportChat(store, chatID, out, cmd.OutOrStdout())
		}),
	}
	export.Flags().StringVar(&chat, "chat", "", "chat id, e.g. --chat=-1001234567890")
	export.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	export.MarkFlagRequired("chat")
	root.AddCommand(export)

	imp := &cobra.Command{
		Use:   "import --chat <id> --file <backup.json>",
		Short: "Load a backup JSON into a chat, replacing its data",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *db.DB, cmd *cobra.Command, _ []string) error {
			chatID, err := parseChatID(chat)
			if err != nil {
				return err
			}
			if err := importChat(store, chatID, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %d\n", file, chatID)
			return nil
		}),
	}
	imp.Flags().StringVar(&chat, "chat", "", "chat id, e.g. --chat=-1001234567890")
	imp.Flags().StringVarP(&file, "file", "f", "", "backup file")
	imp.MarkFlagRequired("chat")
	imp.MarkFlagRequired("file")
	root.AddCommand(imp)

	migrate := &cobra.Command{
		Use:   "migrate --from <old_id> --to <new_id>",
		Short: "Move every record of a chat to a new chat id",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *db.DB, cmd *cobra.Command, _ []string) error {
			oldID, err := parseChatID(fromID)
			if err != nil {
				return err
			}
			newID, err := parseChatID(toID)
			if err != nil {
				return err
			}
			if err := store.MigrateChat(oldID, newID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d to %d\n", oldID, newID)
			return nil
		}),
	}
	migrate.Flags().StringVar(&fromID, "from", "", "old chat id")
	migrate.Flags().StringVar(&toID, "to", "", "new chat id")
	migrate.MarkFlagRequired("from")
	migrate.MarkFlagRequired("to")
	root.AddCommand(migrate)

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print database counters",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *db.DB, cmd *cobra.Command, _ []string) error {
			return printStats(store, cmd.OutOrStdout())
		}),
	})

	return root
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat id %q", s)
	}
	return id, nil
}

func exportChat(store *db.DB, chatID int64, path string, stdout io.Writer) error {
	bk, err := store.Export(chatID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(bk, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func importChat(store *db.DB, chatID int64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var bk db.Backup
	if err := json.Unmarshal(data, &bk); err != nil {
		return fmt.Errorf("%w: %v", db.ErrBadBackup, err)
	}
	return store.Import(chatID, &bk)
}

func printStats(store *db.DB, w io.Writer) error {
	s, err := store.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "chats:           %d\n", s.Chats)
	fmt.Fprintf(w, "users:           %d\n", s.Users)
	fmt.Fprintf(w, "gbans:           %d\n", s.Gbans)
	fmt.Fprintf(w, "warns:           %d (%d users)\n", s.Warns, s.WarnedUsers)
	fmt.Fprintf(w, "warn filters:    %d\n", s.WarnFilters)
	fmt.Fprintf(w, "blacklist words: %d\n", s.BlacklistWords)
	fmt.Fprintf(w, "notes:           %d\n", s.Notes)
	fmt.Fprintf(w, "afk users:       %d\n", s.AFK)
	return nil
}
