package rpc

import (
	"encoding/json"

	"github.com/hourbook/hourbook/internal/types"
)

// Operation constants for all hb commands
const (
	OpPing    = "ping"
	OpStatus  = "status"
	OpHealth  = "health"
	OpMetrics = "metrics"

	OpCreateProject = "create_project"
	OpListProjects  = "list_projects"
	OpUpdateProject = "update_project"
	OpDeleteProject = "delete_project"

	OpCreateCustomer = "create_customer"
	OpListCustomers  = "list_customers"
	OpDeleteCustomer = "delete_customer"

	OpCreateEntry = "create_entry"
	OpShowEntry   = "show_entry"
	OpListEntries = "list_entries"
	OpUpdateEntry = "update_entry"
	OpDeleteEntry = "delete_entry"
	OpUnbilled    = "unbilled"

	OpCreateInvoice     = "create_invoice"
	OpUpdateInvoice     = "update_invoice"
	OpDeleteInvoice     = "delete_invoice"
	OpFinalizeInvoice   = "finalize_invoice"
	OpCancelInvoice     = "cancel_invoice"
	OpAddEntries        = "add_entries"
	OpRemoveEntries     = "remove_entries"
	OpNextInvoiceNumber = "next_invoice_number"
	OpShowInvoice       = "show_invoice"
	OpListInvoices      = "list_invoices"
	OpComputeTotal      = "compute_total"

	OpMigrationStatus = "migration_status"
	OpBackup          = "backup"
	OpGetSetting      = "get_setting"
	OpSetSetting      = "set_setting"
	OpListSettings    = "list_settings"
	OpShutdown        = "shutdown"
)

// Response codes classify failures so clients can react without parsing messages
const (
	CodeValidation = "validation"
	CodeConflict   = "conflict"
	CodeNotFound   = "not_found"
	CodeIntegrity  = "integrity"
	CodeMigration  = "migration"
	CodeInternal   = "internal"
)

// Request represents an RPC request from client to daemon
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args"`
	Actor         string          `json:"actor,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"` // Client version for compatibility checks
	ExpectedDB    string          `json:"expected_db,omitempty"`    // Expected database path for validation (absolute)
}

// Response represents an RPC response from daemon to client
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`   // one of the Code* constants
	Reason  string          `json:"reason,omitempty"` // named condition, e.g. "invoice_locked"
}

// IDArgs addresses a single record
type IDArgs struct {
	ID int64 `json:"id"`
}

// ListProjectsArgs represents arguments for the list_projects operation
type ListProjectsArgs struct {
	Status types.ProjectStatus `json:"status,omitempty"`
}

// UpdateProjectArgs represents arguments for the update_project operation
type UpdateProjectArgs struct {
	ID int64 `json:"id"`
	types.ProjectUpdate
}

// ListEntriesArgs represents arguments for the list_entries operation
type ListEntriesArgs struct {
	ProjectID     *int64              `json:"project_id,omitempty"`
	From          string              `json:"from,omitempty"`
	To            string              `json:"to,omitempty"`
	BillingStatus types.BillingStatus `json:"billing_status,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
}

// UpdateEntryArgs represents arguments for the update_entry operation
type UpdateEntryArgs struct {
	ID int64 `json:"id"`
	types.TimeEntryUpdate
}

// UpdateInvoiceArgs represents arguments for the update_invoice operation
type UpdateInvoiceArgs struct {
	ID int64 `json:"id"`
	types.InvoiceUpdate
}

// CancelInvoiceArgs represents arguments for the cancel_invoice operation
type CancelInvoiceArgs struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// AddEntriesArgs represents arguments for the add_entries operation
type AddEntriesArgs struct {
	InvoiceID int64   `json:"invoice_id"`
	EntryIDs  []int64 `json:"entry_ids"`
}

// RemoveEntriesArgs represents arguments for the remove_entries operation
type RemoveEntriesArgs struct {
	EntryIDs []int64 `json:"entry_ids"`
}

// ShowInvoiceArgs addresses an invoice by ID or by invoice number
type ShowInvoiceArgs struct {
	ID     int64  `json:"id,omitempty"`
	Number string `json:"number,omitempty"`
}

// ListInvoicesArgs represents arguments for the list_invoices operation
type ListInvoicesArgs struct {
	Status types.InvoiceStatus `json:"status,omitempty"`
	Type   types.InvoiceType   `json:"type,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// BackupArgs represents arguments for the backup operation
type BackupArgs struct {
	Dir  string `json:"dir,omitempty"`
	Keep int    `json:"keep,omitempty"`
}

// SettingArgs represents arguments for the settings operations
type SettingArgs struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// NextNumberResponse is the response for next_invoice_number
type NextNumberResponse struct {
	InvoiceNumber string `json:"invoice_number"`
}

// TotalResponse is the response for compute_total
type TotalResponse struct {
	InvoiceID int64  `json:"invoice_id"`
	Total     string `json:"total"`
}

// PingResponse is the response for a ping operation
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// StatusResponse represents the daemon status metadata
type StatusResponse struct {
	Version          string  `json:"version"`
	WorkspacePath    string  `json:"workspace_path"`
	DatabasePath     string  `json:"database_path"`
	SocketPath       string  `json:"socket_path"`
	PID              int     `json:"pid"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	LastActivityTime string  `json:"last_activity_time"`
}

// HealthResponse is the response for a health check operation
type HealthResponse struct {
	Status         string  `json:"status"` // "healthy", "degraded", "unhealthy"
	Version        string  `json:"version"`
	ClientVersion  string  `json:"client_version,omitempty"`
	Compatible     bool    `json:"compatible"`
	Uptime         float64 `json:"uptime_seconds"`
	DBResponseTime float64 `json:"db_response_ms"`
	SchemaVersion  int     `json:"schema_version"`
	ActiveConns    int32   `json:"active_connections"`
	MaxConns       int     `json:"max_connections"`
	MemoryAllocMB  uint64  `json:"memory_alloc_mb"`
	Error          string  `json:"error,omitempty"`
}
