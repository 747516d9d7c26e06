package migrations

import (
	"context"
	"fmt"
)

// SchemaIntrospector answers questions about the live schema so migration
// bodies can check before they mutate
type SchemaIntrospector interface {
	HasTable(ctx context.Context, name string) (bool, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)
}

type sqliteIntrospector struct {
	ex Executor
}

// NewIntrospector returns a SchemaIntrospector backed by SQLite's catalog
func NewIntrospector(ex Executor) SchemaIntrospector {
	return &sqliteIntrospector{ex: ex}
}

func (s *sqliteIntrospector) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *sqliteIntrospector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check for column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// addColumnIfMissing runs ALTER TABLE ADD COLUMN unless the column already exists
func addColumnIfMissing(ctx context.Context, ex Executor, schema SchemaIntrospector, table, column, definition string) error {
	exists, err := schema.HasColumn(ctx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	// #nosec G201 - table and column names are compile-time constants
	if _, err := ex.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s column: %w", table, column, err)
	}
	return nil
}

// LegacyMarker is a structural fact that proves a database is at least at Version.
// A marker with an empty Column tests for the table alone.
type LegacyMarker struct {
	Version int
	Table   string
	Column  string
}

func (m LegacyMarker) present(ctx context.Context, schema SchemaIntrospector) (bool, error) {
	if m.Column == "" {
		return schema.HasTable(ctx, m.Table)
	}
	hasTable, err := schema.HasTable(ctx, m.Table)
	if err != nil || !hasTable {
		return false, err
	}
	return schema.HasColumn(ctx, m.Table, m.Column)
}
