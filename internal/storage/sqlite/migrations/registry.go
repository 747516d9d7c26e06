package migrations

// All returns the known migration set in version order
func All() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", Up: migrateInitialSchema},
		{Version: 2, Name: "add_invoices", Up: migrateInvoices},
		{Version: 3, Name: "add_billing_status", Up: migrateBillingStatus},
		{Version: 4, Name: "add_customers", Up: migrateCustomers},
		{Version: 5, Name: "add_invoice_cancellation", Up: migrateInvoiceCancellation},
		{Version: 6, Name: "add_external_invoices", Up: migrateExternalInvoices},
		{Version: 7, Name: "add_invoice_tax", Up: migrateInvoiceTax},
		{Version: 8, Name: "add_service_period", Up: migrateServicePeriod},
		{Version: 9, Name: "add_billing_indexes", Up: migrateBillingIndexes},
	}
}

// LegacyMarkers date a database created before the ledger existed.
// Version 9 only adds indexes and has no marker; it is re-applied.
var LegacyMarkers = []LegacyMarker{
	{Version: 1, Table: "projects"},
	{Version: 2, Table: "invoices"},
	{Version: 3, Table: "time_entries", Column: "billing_status"},
	{Version: 4, Table: "customers"},
	{Version: 5, Table: "invoices", Column: "cancellation_reason"},
	{Version: 6, Table: "invoices", Column: "type"},
	{Version: 7, Table: "invoices", Column: "tax_rate"},
	{Version: 8, Table: "invoices", Column: "service_period_start_auto"},
}
