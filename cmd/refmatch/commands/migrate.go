package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrypster/refmatch/internal/storage"
)

var (
	migrateDir  string
	migrateDown bool
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and versioned migrations",
		Long: `Apply the built-in schema, then any NNN_name.up.sql files found in --dir.

With --down the most recently applied versioned migration is rolled back
using its NNN_name.down.sql file.

Examples:
  refmatch migrate
  refmatch migrate --dir ./migrations
  refmatch migrate --dir ./migrations --down`,
		RunE: runMigrate,
	}

	cmd.Flags().StringVar(&migrateDir, "dir", "", "Directory of versioned migration files")
	cmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back the latest versioned migration")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateDown && migrateDir == "" {
		return fmt.Errorf("--down requires --dir")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schema is up to date (%s)\n", cfg.Storage.StorageEngine)
	if migrateDir == "" {
		return nil
	}

	if _, err := os.Stat(migrateDir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	db, placeholder, err := storeDB(cfg, store)
	if err != nil {
		return err
	}
	m, err := storage.NewMigrator(db, os.DirFS(migrateDir), placeholder)
	if err != nil {
		return err
	}

	ctx := runContext(cmd)
	if migrateDown {
		version, err := m.Down(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "No versioned migrations to roll back")
			return nil
		}
		fmt.Fprintf(out, "Rolled back version %d\n", version)
		return nil
	}

	applied, err := m.Up(ctx)
	for _, v := range applied {
		fmt.Fprintf(out, "Applied version %d\n", v)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "No pending versioned migrations")
	}
	return nil
}
