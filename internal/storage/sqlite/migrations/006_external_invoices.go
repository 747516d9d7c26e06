package migrations

import "context"

func migrateExternalInvoices(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	columns := []struct{ name, definition string }{
		{"type", "TEXT NOT NULL DEFAULT 'internal'"},
		{"external_invoice_number", "TEXT"},
		{"net_amount", "REAL"},
		{"gross_amount", "REAL"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, ex, schema, "invoices", c.name, c.definition); err != nil {
			return err
		}
	}
	return nil
}
