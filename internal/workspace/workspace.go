// Package workspace locates the .hourbook directory and the files inside it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hourbook/hourbook/internal/configfile"
	"github.com/hourbook/hourbook/internal/utils"
)

// DirName is the per-workspace directory holding the database and daemon files
const DirName = ".hourbook"

// CanonicalDatabaseName is the default database filename
const CanonicalDatabaseName = "hourbook.db"

const (
	socketName = "hb.sock"
	lockName   = "daemon.lock"
	pidName    = "daemon.pid"
	logName    = "daemon.log"
)

// FindDir finds the .hourbook directory:
//  1. $HOURBOOK_DIR
//  2. .hourbook/ in the current directory or an ancestor
//
// Returns empty string if not found.
func FindDir() string {
	if dir := os.Getenv("HOURBOOK_DIR"); dir != "" {
		abs := utils.CanonicalizePath(dir)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = resolved
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FindDatabasePath discovers the database using this search order:
//  1. $HOURBOOK_DB (points directly to the database file)
//  2. the database named in metadata.json of the discovered .hourbook directory
//  3. .hourbook/hourbook.db
//
// Returns empty string if no database is found.
func FindDatabasePath() string {
	if envDB := os.Getenv("HOURBOOK_DB"); envDB != "" {
		return utils.CanonicalizePath(envDB)
	}

	dir := FindDir()
	if dir == "" {
		return ""
	}
	if cfg, err := configfile.Load(dir); err == nil && cfg != nil {
		if p := cfg.DatabasePath(dir); fileExists(p) {
			return p
		}
	}
	if p := filepath.Join(dir, CanonicalDatabaseName); fileExists(p) {
		return p
	}
	return ""
}

// Init creates root/.hourbook with a default metadata.json if missing and
// returns the directory and database path. Existing metadata is kept.
func Init(root string) (dir, dbPath string, err error) {
	dir = filepath.Join(utils.CanonicalizePath(root), DirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	cfg, err := configfile.Load(dir)
	if err != nil {
		return "", "", err
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
		if err := cfg.Save(dir); err != nil {
			return "", "", err
		}
	}
	return dir, cfg.DatabasePath(dir), nil
}

// Dir returns the workspace directory that holds dbPath
func Dir(dbPath string) string {
	return filepath.Dir(dbPath)
}

// BackupDir returns the backup directory configured for the workspace holding dbPath
func BackupDir(dbPath string) string {
	dir := Dir(dbPath)
	cfg, err := configfile.Load(dir)
	if err != nil || cfg == nil {
		cfg = configfile.DefaultConfig()
	}
	return cfg.BackupPath(dir)
}

// SocketPath returns the daemon socket for the database at dbPath
func SocketPath(dbPath string) string {
	return filepath.Join(Dir(dbPath), socketName)
}

// LockPath returns the daemon lock file for the database at dbPath
func LockPath(dbPath string) string {
	return filepath.Join(Dir(dbPath), lockName)
}

// PIDPath returns the daemon pid file for the database at dbPath
func PIDPath(dbPath string) string {
	return filepath.Join(Dir(dbPath), pidName)
}

// LogPath returns the default daemon log for the database at dbPath
func LogPath(dbPath string) string {
	return filepath.Join(Dir(dbPath), logName)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
