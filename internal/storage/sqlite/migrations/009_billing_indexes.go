package migrations

import (
	"context"
	"fmt"
)

func migrateBillingIndexes(ctx context.Context, ex Executor, _ SchemaIntrospector) error {
	_, err := ex.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_time_entries_invoice ON time_entries(invoice_id);
		CREATE INDEX IF NOT EXISTS idx_time_entries_project_date ON time_entries(project_id, date);
		CREATE INDEX IF NOT EXISTS idx_time_entries_billing_status ON time_entries(billing_status);
		CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
		CREATE INDEX IF NOT EXISTS idx_projects_customer ON projects(customer_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create billing indexes: %w", err)
	}
	return nil
}
