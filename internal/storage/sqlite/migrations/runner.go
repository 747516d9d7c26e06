// Package migrations evolves the hourbook SQLite schema through an ordered,
// ledger-tracked set of versioned migrations.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hourbook/hourbook/internal/types"
)

const ledgerTable = "schema_migrations"

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at DATETIME NOT NULL
)`

// ErrUnknownSchemaVersion is returned when the ledger records a version this
// binary does not ship, i.e. the database was written by a newer build.
var ErrUnknownSchemaVersion = errors.New("database schema version is unknown to this build")

// Executor is the subset of *sql.DB, *sql.Tx and *sql.Conn a migration body needs
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migration is one versioned schema change. Up must be idempotent: it checks
// the live schema before mutating it.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, ex Executor, schema SchemaIntrospector) error
}

// MigrationError identifies the migration that failed. It is fatal to startup.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// RunResult reports what RunPending did
type RunResult struct {
	Applied        int `json:"applied"`
	CurrentVersion int `json:"current_version"`
}

// Runner applies a known migration set to one database
type Runner struct {
	db         *sql.DB
	migrations []Migration
	markers    []LegacyMarker
	now        func() time.Time
}

// NewRunner creates a runner for the given migration set, ordered by version
func NewRunner(db *sql.DB, migrations []Migration) *Runner {
	ms := make([]Migration, len(migrations))
	copy(ms, migrations)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Version < ms[j].Version })
	return &Runner{
		db:         db,
		migrations: ms,
		markers:    LegacyMarkers,
		now:        time.Now,
	}
}

// WithMarkers replaces the structural markers used to date a legacy database
func (r *Runner) WithMarkers(markers []LegacyMarker) *Runner {
	r.markers = markers
	return r
}

// Validate checks that versions are contiguous from 1 and that every
// migration is named and has a body
func Validate(migrations []Migration) error {
	ms := make([]Migration, len(migrations))
	copy(ms, migrations)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Version < ms[j].Version })

	names := make(map[string]int, len(ms))
	for i, m := range ms {
		if m.Version != i+1 {
			return fmt.Errorf("migration versions must be contiguous from 1: expected %d, found %d", i+1, m.Version)
		}
		if m.Name == "" {
			return fmt.Errorf("migration %d has no name", m.Version)
		}
		if prev, ok := names[m.Name]; ok {
			return fmt.Errorf("migration name %q used by versions %d and %d", m.Name, prev, m.Version)
		}
		names[m.Name] = m.Version
		if m.Up == nil {
			return fmt.Errorf("migration %d (%s) has no body", m.Version, m.Name)
		}
	}
	return nil
}

// LatestVersion is the highest version in the known set
func (r *Runner) LatestVersion() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// CurrentVersion returns the highest applied version, or 0 for an empty ledger.
// The ledger table is created if missing.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if _, err := r.db.ExecContext(ctx, ledgerDDL); err != nil {
		return 0, fmt.Errorf("failed to create migration ledger: %w", err)
	}
	var version int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > r.LatestVersion() {
		return version, fmt.Errorf("%w: database at version %d, latest known is %d", ErrUnknownSchemaVersion, version, r.LatestVersion())
	}
	return version, nil
}

// NeedsMigration reports whether the database is behind the known set.
// A legacy database whose ledger has not been bootstrapped yet reports true.
func (r *Runner) NeedsMigration(ctx context.Context) (bool, error) {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	return current < r.LatestVersion(), nil
}

// Applied lists the ledger in version order
func (r *Runner) Applied(ctx context.Context) ([]types.SchemaMigrationRecord, error) {
	if _, err := r.db.ExecContext(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("failed to create migration ledger: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.SchemaMigrationRecord
	for rows.Next() {
		var rec types.SchemaMigrationRecord
		if err := rows.Scan(&rec.Version, &rec.Name, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// BootstrapLegacy dates a database that predates the ledger. When the ledger
// is absent or empty, it probes the structural markers in order, each one only
// raising the detected version, and records every known migration up to that
// version as applied without running its body. Returns the detected version;
// 0 for a fresh database or one whose ledger already has rows.
func (r *Runner) BootstrapLegacy(ctx context.Context) (int, error) {
	si := NewIntrospector(r.db)
	hasLedger, err := si.HasTable(ctx, ledgerTable)
	if err != nil {
		return 0, err
	}
	if hasLedger {
		var rows int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&rows); err != nil {
			return 0, fmt.Errorf("failed to count ledger rows: %w", err)
		}
		if rows > 0 {
			return 0, nil
		}
	}

	detected := 0
	for _, mk := range r.markers {
		present, err := mk.present(ctx, si)
		if err != nil {
			return 0, err
		}
		if present && mk.Version > detected {
			detected = mk.Version
		}
	}
	if detected > r.LatestVersion() {
		detected = r.LatestVersion()
	}
	if detected == 0 {
		return 0, nil
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return 0, fmt.Errorf("failed to begin immediate transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if _, err := conn.ExecContext(ctx, ledgerDDL); err != nil {
		return 0, fmt.Errorf("failed to create migration ledger: %w", err)
	}
	now := r.now()
	for _, m := range r.migrations {
		if m.Version > detected {
			break
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, now); err != nil {
			return 0, fmt.Errorf("failed to record legacy migration %d: %w", m.Version, err)
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return detected, nil
}

// RunPending bootstraps a legacy ledger if needed and then applies every
// migration newer than the current version, each in its own transaction.
// It stops at the first failure, leaving the ledger at the last good version.
func (r *Runner) RunPending(ctx context.Context) (*RunResult, error) {
	if err := Validate(r.migrations); err != nil {
		return nil, err
	}
	if _, err := r.BootstrapLegacy(ctx); err != nil {
		return nil, err
	}
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{CurrentVersion: current}
	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return result, err
		}
		result.Applied++
		result.CurrentVersion = m.Version
	}
	return result, nil
}

// Pending lists the migrations RunPending would apply. Legacy bootstrap is
// simulated, not performed.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	si := NewIntrospector(r.db)
	current := 0
	hasLedger, err := si.HasTable(ctx, ledgerTable)
	if err != nil {
		return nil, err
	}
	if hasLedger {
		if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
	}
	if current == 0 {
		for _, mk := range r.markers {
			present, err := mk.present(ctx, si)
			if err != nil {
				return nil, err
			}
			if present && mk.Version > current {
				current = mk.Version
			}
		}
	}

	var pending []Migration
	for _, m := range r.migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) (err error) {
	defer func() {
		if err != nil {
			err = &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
	}()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := m.Up(ctx, conn, NewIntrospector(conn)); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, r.now()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
