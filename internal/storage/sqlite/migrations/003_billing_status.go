package migrations

import (
	"context"
	"fmt"
)

func migrateBillingStatus(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	if err := addColumnIfMissing(ctx, ex, schema, "time_entries", "billing_status", "TEXT NOT NULL DEFAULT 'unbilled'"); err != nil {
		return err
	}

	// Derive the label from the linked invoice; entries pointing nowhere stay unbilled
	_, err := ex.ExecContext(ctx, `
		UPDATE time_entries
		SET billing_status = COALESCE((
			SELECT CASE invoices.status WHEN 'draft' THEN 'in_draft' ELSE 'invoiced' END
			FROM invoices WHERE invoices.id = time_entries.invoice_id
		), 'unbilled')
		WHERE invoice_id IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill billing_status: %w", err)
	}
	return nil
}
