// Package sqlite - schema compatibility probing
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
)

// ErrSchemaIncompatible is returned when the database schema is incompatible with the current version
var ErrSchemaIncompatible = errors.New("database schema is incompatible")

// SchemaProbeResult contains the results of a schema compatibility check
type SchemaProbeResult struct {
	Compatible     bool
	MissingTables  []string
	MissingColumns map[string][]string // table -> missing columns
	ErrorMessage   string
}

// probeSchema verifies all expected tables and columns exist
func probeSchema(ctx context.Context, ex migrations.Executor) SchemaProbeResult {
	result := SchemaProbeResult{
		Compatible:     true,
		MissingTables:  []string{},
		MissingColumns: make(map[string][]string),
	}

	tables := make([]string, 0, len(expectedSchema))
	for table := range expectedSchema {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		expectedCols := expectedSchema[table]
		// #nosec G201 - table and column names come from expectedSchema
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(expectedCols, ", "), table)
		rows, err := ex.QueryContext(ctx, query)
		if err == nil {
			_ = rows.Close()
			continue
		}

		errMsg := err.Error()
		if strings.Contains(errMsg, "no such table") {
			result.Compatible = false
			result.MissingTables = append(result.MissingTables, table)
			continue
		}
		if strings.Contains(errMsg, "no such column") {
			result.Compatible = false
			if missing := findMissingColumns(ctx, ex, table, expectedCols); len(missing) > 0 {
				result.MissingColumns[table] = missing
			}
		}
	}

	if !result.Compatible {
		var parts []string
		if len(result.MissingTables) > 0 {
			parts = append(parts, fmt.Sprintf("missing tables: %s", strings.Join(result.MissingTables, ", ")))
		}
		for _, table := range tables {
			if cols, ok := result.MissingColumns[table]; ok {
				parts = append(parts, fmt.Sprintf("missing columns in %s: %s", table, strings.Join(cols, ", ")))
			}
		}
		result.ErrorMessage = strings.Join(parts, "; ")
	}

	return result
}

// findMissingColumns determines which columns are missing from a table
func findMissingColumns(ctx context.Context, ex migrations.Executor, table string, expectedCols []string) []string {
	missing := []string{}
	for _, col := range expectedCols {
		// #nosec G201 - names come from expectedSchema
		rows, err := ex.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s LIMIT 0", col, table))
		if err != nil {
			if strings.Contains(err.Error(), "no such column") {
				missing = append(missing, col)
			}
			continue
		}
		_ = rows.Close()
	}
	return missing
}

// verifySchemaCompatibility runs schema probe and returns detailed error on failure
func verifySchemaCompatibility(ctx context.Context, ex migrations.Executor) error {
	result := probeSchema(ctx, ex)
	if !result.Compatible {
		return fmt.Errorf("%w: %s", ErrSchemaIncompatible, result.ErrorMessage)
	}
	return nil
}

// ProbeSchema exposes the compatibility check for diagnostics
func (s *SQLiteStorage) ProbeSchema(ctx context.Context) SchemaProbeResult {
	return probeSchema(ctx, s.db)
}
