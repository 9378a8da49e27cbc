// Package backup takes verified point-in-time copies of the SQLite database
// and prunes old copies.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	filePrefix = "refmatch-"
	fileSuffix = ".db"
	nameLayout = "20060102T150405.000000000Z"
)

// Snapshot describes one backup file.
type Snapshot struct {
	Path      string        `json:"path"`
	Timestamp time.Time     `json:"timestamp"`
	Size      int64         `json:"size"`
	Duration  time.Duration `json:"duration,omitempty"`
	Verified  bool          `json:"verified"`
}

// Snapshotter writes backups of one database into one directory.
type Snapshotter struct {
	dbPath string
	dir    string
	now    func() time.Time
}

// NewSnapshotter creates the backup directory when needed.
func NewSnapshotter(dbPath, dir string) (*Snapshotter, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Snapshotter{dbPath: dbPath, dir: dir, now: time.Now}, nil
}

// Snapshot copies the database with VACUUM INTO, which is consistent under
// WAL, and checks the copy with PRAGMA integrity_check. A copy that fails
// verification is removed.
func (s *Snapshotter) Snapshot(ctx context.Context) (*Snapshot, error) {
	start := s.now()
	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	ts := start.UTC()
	dest := filepath.Join(s.dir, filePrefix+ts.Format(nameLayout)+fileSuffix)

	src, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", s.dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(dest, "'", "''"))); err != nil {
		return nil, fmt.Errorf("failed to backup database: %w", err)
	}

	if err := verify(ctx, dest); err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	return &Snapshot{
		Path:      dest,
		Timestamp: ts,
		Size:      info.Size(),
		Duration:  s.now().Sub(start),
		Verified:  true,
	}, nil
}

func verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// List returns the backups in the directory, newest first. Files not
// named by Snapshot are ignored.
func (s *Snapshotter) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ts, err := time.Parse(nameLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Path:      filepath.Join(s.dir, name),
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// Prune keeps the newest keep backups and deletes the rest, returning the
// deleted paths.
func (s *Snapshotter) Prune(keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	snapshots, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	var removed []string
	for _, snap := range snapshots[keep:] {
		if err := os.Remove(snap.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", snap.Path, err)
		}
		removed = append(removed, snap.Path)
	}
	return removed, nil
}
