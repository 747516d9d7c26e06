package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
)

// PendingMigration names one migration that has not been applied
type PendingMigration struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

// MigrationPlan describes what opening a database would migrate
type MigrationPlan struct {
	Path          string             `json:"path"`
	LedgerVersion int                `json:"ledger_version"`
	LatestVersion int                `json:"latest_version"`
	Pending       []PendingMigration `json:"pending"`
}

// InspectMigrations opens the database at path read-only and reports the
// migrations New would apply, without changing anything.
func InspectMigrations(ctx context.Context, path string) (*MigrationPlan, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_pragma=busy_timeout(30000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner(db, migrations.All())
	plan := &MigrationPlan{Path: path, LatestVersion: runner.LatestVersion()}

	hasLedger, err := migrations.NewIntrospector(db).HasTable(ctx, "schema_migrations")
	if err != nil {
		return nil, err
	}
	if hasLedger {
		if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&plan.LedgerVersion); err != nil {
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
		if plan.LedgerVersion > plan.LatestVersion {
			return plan, fmt.Errorf("%w: database at version %d, latest known is %d",
				migrations.ErrUnknownSchemaVersion, plan.LedgerVersion, plan.LatestVersion)
		}
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range pending {
		plan.Pending = append(plan.Pending, PendingMigration{Version: m.Version, Name: m.Name})
	}
	return plan, nil
}
