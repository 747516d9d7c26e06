package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix = "hourbook-backup-"
	backupSuffix = ".db"

	// LastBackupSetting records the UTC time of the most recent backup
	LastBackupSetting = "last_backup_at"
)

// BackupResult describes one completed backup
type BackupResult struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	TakenAt time.Time `json:"taken_at"`
	Pruned  []string  `json:"pruned,omitempty"`
}

// Backup copies the database into dir as hourbook-backup-YYYYMMDD-HHMMSS.db
// and prunes all but the keep newest backups (keep <= 0 keeps everything).
// Writers in this process wait for the snapshot to finish.
func (s *SQLiteStorage) Backup(ctx context.Context, dir string, keep int) (*BackupResult, error) {
	if s.closed.Load() {
		return nil, errors.New("storage is closed")
	}
	if s.dbPath == "" || strings.HasPrefix(s.dbPath, ":memory:") || strings.HasPrefix(s.dbPath, "file:") {
		return nil, fmt.Errorf("cannot back up in-memory or URI database %q", s.dbPath)
	}
	if dir == "" {
		dir = filepath.Join(filepath.Dir(s.dbPath), "backups")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	takenAt := s.timestamp()
	dest := uniqueBackupPath(dir, takenAt)
	size, err := s.snapshot(ctx, dest)
	if err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	if err := setSetting(ctx, s.db, LastBackupSetting, takenAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}

	pruned, err := pruneBackups(dir, keep)
	if err != nil {
		return nil, err
	}
	return &BackupResult{Path: dest, Size: size, TakenAt: takenAt, Pruned: pruned}, nil
}

func uniqueBackupPath(dir string, t time.Time) string {
	base := backupPrefix + t.Format("20060102-150405")
	path := filepath.Join(dir, base+backupSuffix)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, backupSuffix))
	}
}

// snapshot writes a consistent copy of the database to dest. VACUUM INTO
// reads through a normal read transaction, so open readers elsewhere and
// frames still sitting in the WAL are both fine.
func (s *SQLiteStorage) snapshot(ctx context.Context, dest string) (int64, error) {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return 0, fmt.Errorf("failed to snapshot database: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to stat backup file: %w", err)
	}
	return info.Size(), nil
}

// ListBackups returns backup files in dir, oldest first
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		names = append(names, filepath.Join(dir, name))
	}
	// timestamped names sort chronologically
	sort.Strings(names)
	return names, nil
}

func pruneBackups(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}
	stale := backups[:len(backups)-keep]
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to prune backup %s: %w", path, err)
		}
	}
	return stale, nil
}
