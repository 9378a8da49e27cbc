package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/refmatch/internal/backup"
	"github.com/scrypster/refmatch/internal/storage/sqlite"
)

var (
	backupDir  string
	backupKeep int
)

// NewBackupCmd creates the backup command.
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take a verified copy of the SQLite database",
		Long: `Take a verified point-in-time copy of the SQLite database, then keep only
the newest --keep copies. PostgreSQL deployments should use pg_dump.

Examples:
  refmatch backup
  refmatch backup --dir /var/backups/refmatch --keep 48`,
		Args: cobra.NoArgs,
		RunE: runBackup,
	}

	cmd.Flags().StringVar(&backupDir, "dir", "", "Backup directory (default <data path>/backups)")
	cmd.Flags().IntVar(&backupKeep, "keep", 24, "Number of backups to keep")

	return cmd
}

func runBackup(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(backupKeep, "keep"); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.StorageEngine != "sqlite" {
		return fmt.Errorf("backup supports the sqlite engine only, got %q", cfg.Storage.StorageEngine)
	}

	dbPath := sqlite.PathFromDSN(cfg.Storage.DSN)
	if dbPath == "" {
		return fmt.Errorf("backup needs a file database, got DSN %q", cfg.Storage.DSN)
	}

	dir := backupDir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataPath, "backups")
	}
	s, err := backup.NewSnapshotter(dbPath, dir)
	if err != nil {
		return err
	}

	snap, err := s.Snapshot(runContext(cmd))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backup written to %s (%d bytes, verified)\n", snap.Path, snap.Size)

	removed, err := s.Prune(backupKeep)
	for _, path := range removed {
		fmt.Fprintf(out, "Removed old backup %s\n", path)
	}
	return err
}
