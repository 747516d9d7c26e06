package migrations

import "context"

func migrateInvoiceTax(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	columns := []struct{ name, definition string }{
		{"tax_rate", "REAL NOT NULL DEFAULT 0"},
		{"is_small_business", "INTEGER NOT NULL DEFAULT 0"},
		{"tax_amount", "REAL NOT NULL DEFAULT 0"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, ex, schema, "invoices", c.name, c.definition); err != nil {
			return err
		}
	}
	return nil
}
