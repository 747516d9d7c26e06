package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	return openRawDBAt(t, filepath.Join(t.TempDir(), "probe.db"))
}

func openRawDBAt(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=foreign_keys(ON)&_time_format=sqlite")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProbeSchema_AllTablesPresent(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if _, err := migrations.NewRunner(db, migrations.All()).RunPending(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	result := probeSchema(ctx, db)
	if !result.Compatible {
		t.Errorf("expected schema to be compatible, got: %s", result.ErrorMessage)
	}
	if len(result.MissingTables) > 0 {
		t.Errorf("unexpected missing tables: %v", result.MissingTables)
	}
	if len(result.MissingColumns) > 0 {
		t.Errorf("unexpected missing columns: %v", result.MissingColumns)
	}
}

func TestProbeSchema_MissingTable(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	// Everything up to add_invoice_tax, but without the customers table
	for _, m := range migrations.All()[:3] {
		if err := m.Up(ctx, db, migrations.NewIntrospector(db)); err != nil {
			t.Fatalf("migration %d: %v", m.Version, err)
		}
	}

	result := probeSchema(ctx, db)
	if result.Compatible {
		t.Fatal("expected schema to be incompatible")
	}
	want := []string{"customers", "schema_migrations"}
	if diff := cmp.Diff(want, result.MissingTables); diff != "" {
		t.Errorf("missing tables mismatch (-want +got):\n%s", diff)
	}
}

func TestProbeSchema_MissingColumn(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if _, err := migrations.NewRunner(db, migrations.All()).RunPending(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE invoices DROP COLUMN tax_amount`); err != nil {
		t.Fatalf("failed to drop column: %v", err)
	}

	result := probeSchema(ctx, db)
	if result.Compatible {
		t.Fatal("expected schema to be incompatible")
	}
	if diff := cmp.Diff([]string{"tax_amount"}, result.MissingColumns["invoices"]); diff != "" {
		t.Errorf("missing columns mismatch (-want +got):\n%s", diff)
	}
	if result.ErrorMessage != "missing columns in invoices: tax_amount" {
		t.Errorf("ErrorMessage = %q", result.ErrorMessage)
	}
}

func TestVerifySchemaCompatibility(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := verifySchemaCompatibility(ctx, db); err == nil {
		t.Error("empty database should be incompatible")
	}
	if _, err := migrations.NewRunner(db, migrations.All()).RunPending(ctx); err != nil {
		t.Fatal(err)
	}
	if err := verifySchemaCompatibility(ctx, db); err != nil {
		t.Errorf("migrated database rejected: %v", err)
	}
}
