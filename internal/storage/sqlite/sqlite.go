// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	// Import SQLite driver
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool // Tracks whether Close() has been called

	// writeMu serializes write transactions and backups within the process
	writeMu sync.Mutex
	now     func() time.Time
	runner  *migrations.Runner
}

// setupWASMCache configures WASM compilation caching to reduce SQLite startup time.
// Returns the cache directory path (empty string if using in-memory cache).
//
// The cache lives under os.UserCacheDir()/hourbook/wasm and is keyed by the
// wazero version, so stale entries are harmless.
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "hourbook", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}

	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = ""
	}

	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
	return cacheDir
}

func init() {
	dir := setupWASMCache()
	debug.Logf("sqlite wasm cache: %q", dir)
}

var memdbCounter atomic.Int64

// New opens the store at path, runs pending migrations and verifies the
// resulting schema. A failed migration is returned as *migrations.MigrationError.
// path ":memory:" opens a private in-memory database.
func New(path string) (*SQLiteStorage, error) {
	var connStr string
	if path == ":memory:" {
		// WAL doesn't work with shared in-memory databases; each store gets its own name
		connStr = fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite",
			memdbCounter.Add(1))
	} else if strings.HasPrefix(path, "file:") {
		connStr = path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			connStr += "&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
		}
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are per connection; force a single one
	isInMemory := path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
	if isInMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	absPath := path
	if !isInMemory && !strings.HasPrefix(path, "file:") {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	s := &SQLiteStorage{
		db:     db,
		dbPath: absPath,
		now:    time.Now,
		runner: migrations.NewRunner(db, migrations.All()),
	}

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate brings the schema up to date and probes it. A failed probe gets one
// more migration pass before the store is declared incompatible.
func (s *SQLiteStorage) migrate(ctx context.Context) error {
	result, err := s.runner.RunPending(ctx)
	if err != nil {
		return err
	}
	if result.Applied > 0 {
		debug.Logf("applied %d migration(s), schema now at version %d", result.Applied, result.CurrentVersion)
	}

	if err := verifySchemaCompatibility(ctx, s.db); err != nil {
		if _, retryErr := s.runner.RunPending(ctx); retryErr != nil {
			return fmt.Errorf("migration retry failed after schema probe failure: %w (original: %v)", retryErr, err)
		}
		if err := verifySchemaCompatibility(ctx, s.db); err != nil {
			return fmt.Errorf("schema probe failed after migration retry: %w. Database may be corrupted or from an incompatible version. Run 'hb doctor' to diagnose", err)
		}
	}
	return nil
}

// MigrationStatus describes the schema version of an open store
type MigrationStatus struct {
	CurrentVersion int                           `json:"current_version"`
	LatestVersion  int                           `json:"latest_version"`
	NeedsMigration bool                          `json:"needs_migration"`
	Applied        []types.SchemaMigrationRecord `json:"applied"`
}

// MigrationStatus reports the ledger of the open store
func (s *SQLiteStorage) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	current, err := s.runner.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := s.runner.Applied(ctx)
	if err != nil {
		return nil, err
	}
	return &MigrationStatus{
		CurrentVersion: current,
		LatestVersion:  s.runner.LatestVersion(),
		NeedsMigration: current < s.runner.LatestVersion(),
		Applied:        applied,
	}, nil
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction on a dedicated connection.
// Writes are serialized by writeMu; fn's error rolls everything back.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if s.closed.Load() {
		return errors.New("storage is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// database/sql would otherwise spread BEGIN and COMMIT over different pooled connections
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// IMMEDIATE takes the RESERVED lock up front so read-then-write sequences can't interleave
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// ROLLBACK uses context.Background() so cleanup happens even if ctx is canceled
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// Path returns the absolute path to the database file
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this storage
func (s *SQLiteStorage) IsClosed() bool {
	return s.closed.Load()
}

// UnderlyingDB returns the underlying *sql.DB connection.
// Callers must not close it; Close() on the storage does that.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// CheckpointWAL forces a full WAL checkpoint so the main database file is
// self-contained. It takes the write lock.
func (s *SQLiteStorage) CheckpointWAL(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.checkpoint(ctx, "FULL")
}

// ErrCheckpointBusy is returned when a reader kept the WAL from being fully checkpointed
var ErrCheckpointBusy = errors.New("WAL checkpoint incomplete")

func (s *SQLiteStorage) checkpoint(ctx context.Context, mode string) error {
	var busy, logFrames, checkpointed int
	// #nosec G201 - mode is one of a fixed set of checkpoint modes
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode))
	if err := row.Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if busy != 0 || checkpointed != logFrames {
		return fmt.Errorf("%w: %d of %d frames checkpointed", ErrCheckpointBusy, checkpointed, logFrames)
	}
	return nil
}

func (s *SQLiteStorage) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
