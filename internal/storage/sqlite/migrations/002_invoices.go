package migrations

import (
	"context"
	"fmt"
)

func migrateInvoices(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	_, err := ex.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_number TEXT NOT NULL UNIQUE,
			invoice_date TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			total_amount REAL NOT NULL DEFAULT 0,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create invoices table: %w", err)
	}

	return addColumnIfMissing(ctx, ex, schema, "time_entries", "invoice_id", "INTEGER REFERENCES invoices(id)")
}
