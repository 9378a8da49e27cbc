package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// Placeholder styles for the schema_migrations bookkeeping queries.
const (
	PlaceholderQuestion = "?"  // sqlite
	PlaceholderDollar   = "$1" // postgres
)

// Migration is one versioned SQL file pair.
type Migration struct {
	Version uint
	Name    string
	up      string
	down    string
}

// Migrator applies NNN_name.up.sql / NNN_name.down.sql files on top of the
// built-in schema, which each backend applies when it opens. Applied
// versions are tracked in schema_migrations.
type Migrator struct {
	db          *sql.DB
	files       fs.FS
	placeholder string
}

// NewMigrator creates a migrator for the given database and migration files.
// placeholder is PlaceholderQuestion or PlaceholderDollar.
func NewMigrator(db *sql.DB, files fs.FS, placeholder string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if files == nil {
		return nil, fmt.Errorf("migrations: migration files are required")
	}
	if placeholder != PlaceholderQuestion && placeholder != PlaceholderDollar {
		return nil, fmt.Errorf("migrations: unsupported placeholder %q", placeholder)
	}
	return &Migrator{db: db, files: files, placeholder: placeholder}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("migrations: failed to create schema table: %w", err)
	}
	return nil
}

// Version returns the highest applied version, 0 when none.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version int64
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	return uint(version), nil
}

// Up applies pending migrations in ascending order, each in its own
// transaction, and returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]uint, error) {
	migrations, err := m.Load()
	if err != nil {
		return nil, err
	}
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	var applied []uint
	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		insert := "INSERT INTO schema_migrations (version) VALUES (" + m.placeholder + ")"
		if err := m.apply(ctx, mig.up, insert, mig.Version); err != nil {
			return applied, fmt.Errorf("migrations: failed to apply version %d (%s): %w", mig.Version, mig.Name, err)
		}
		applied = append(applied, mig.Version)
	}
	return applied, nil
}

// Down rolls back the most recently applied migration. It returns the
// version rolled back, 0 when nothing was applied.
func (m *Migrator) Down(ctx context.Context) (uint, error) {
	migrations, err := m.Load()
	if err != nil {
		return 0, err
	}
	current, err := m.Version(ctx)
	if err != nil || current == 0 {
		return 0, err
	}

	for _, mig := range migrations {
		if mig.Version != current {
			continue
		}
		if mig.down == "" {
			return 0, fmt.Errorf("migrations: version %d (%s) has no down file", mig.Version, mig.Name)
		}
		remove := "DELETE FROM schema_migrations WHERE version = " + m.placeholder
		if err := m.apply(ctx, mig.down, remove, mig.Version); err != nil {
			return 0, fmt.Errorf("migrations: failed to roll back version %d (%s): %w", mig.Version, mig.Name, err)
		}
		return mig.Version, nil
	}
	return 0, fmt.Errorf("migrations: applied version %d has no migration file", current)
}

func (m *Migrator) apply(ctx context.Context, body, bookkeeping string, version uint) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, int64(version)); err != nil {
		return err
	}
	return tx.Commit()
}

// Load reads the migration files, sorted by version. Files without a
// numeric prefix are ignored; a version without an up file is an error.
func (m *Migrator) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read directory: %w", err)
	}

	byVersion := make(map[uint]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil || v == 0 {
			continue
		}

		body, err := fs.ReadFile(m.files, name)
		if err != nil {
			return nil, fmt.Errorf("migrations: failed to read %s: %w", name, err)
		}

		mig, ok := byVersion[uint(v)]
		if !ok {
			mig = &Migration{Version: uint(v)}
			byVersion[uint(v)] = mig
		}
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			mig.Name = strings.TrimSuffix(rest, ".up.sql")
			mig.up = string(body)
		case strings.HasSuffix(rest, ".down.sql"):
			mig.down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.up == "" {
			return nil, fmt.Errorf("migrations: version %d has no up file", mig.Version)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
