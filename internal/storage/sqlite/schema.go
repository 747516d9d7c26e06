package sqlite

// expectedSchema lists every table and column the store reads or writes.
// The probe checks it after migrations so a half-migrated file is caught at open.
var expectedSchema = map[string][]string{
	"projects": {
		"id", "name", "hourly_rate", "client_name", "customer_id", "status",
		"created_at", "updated_at",
	},
	"customers": {"id", "name", "email", "phone", "address", "notes", "created_at", "updated_at"},
	"time_entries": {
		"id", "project_id", "date", "start_time", "end_time", "duration_minutes",
		"description", "invoice_id", "billing_status", "created_at", "updated_at",
	},
	"invoices": {
		"id", "invoice_number", "invoice_date", "status", "total_amount", "notes",
		"cancellation_reason", "type", "external_invoice_number", "net_amount", "gross_amount",
		"tax_rate", "is_small_business", "tax_amount",
		"service_period_start", "service_period_end",
		"service_period_start_auto", "service_period_end_auto",
		"created_at", "updated_at",
	},
	"settings":          {"key", "value"},
	"schema_migrations": {"version", "name", "applied_at"},
}

const projectColumns = `id, name, hourly_rate, client_name, customer_id, status, created_at, updated_at`

const customerColumns = `id, name, email, phone, address, notes, created_at, updated_at`

const invoiceColumns = `id, invoice_number, invoice_date, status, total_amount, notes,
	cancellation_reason, type, external_invoice_number, net_amount, gross_amount,
	tax_rate, is_small_business, tax_amount,
	service_period_start, service_period_end, service_period_start_auto, service_period_end_auto,
	created_at, updated_at`

// entryWithProjectColumns selects from time_entries e JOIN projects p
const entryWithProjectColumns = `e.id, e.project_id, e.date, e.start_time, e.end_time, e.duration_minutes,
	e.description, e.invoice_id, e.billing_status, e.created_at, e.updated_at,
	p.name, p.hourly_rate`
