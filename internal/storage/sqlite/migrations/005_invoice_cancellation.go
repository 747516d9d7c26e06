package migrations

import "context"

func migrateInvoiceCancellation(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	return addColumnIfMissing(ctx, ex, schema, "invoices", "cancellation_reason", "TEXT")
}
