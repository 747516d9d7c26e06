package migrations

import (
	"context"
	"fmt"
)

func migrateServicePeriod(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	columns := []struct{ name, definition string }{
		{"service_period_start", "TEXT"},
		{"service_period_end", "TEXT"},
		{"service_period_start_auto", "INTEGER NOT NULL DEFAULT 1"},
		{"service_period_end_auto", "INTEGER NOT NULL DEFAULT 1"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, ex, schema, "invoices", c.name, c.definition); err != nil {
			return err
		}
	}

	_, err := ex.ExecContext(ctx, `
		UPDATE invoices
		SET service_period_start = CASE WHEN service_period_start_auto = 1
				THEN (SELECT MIN(date) FROM time_entries WHERE time_entries.invoice_id = invoices.id)
				ELSE service_period_start END,
			service_period_end = CASE WHEN service_period_end_auto = 1
				THEN (SELECT MAX(date) FROM time_entries WHERE time_entries.invoice_id = invoices.id)
				ELSE service_period_end END
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill service period: %w", err)
	}
	return nil
}
