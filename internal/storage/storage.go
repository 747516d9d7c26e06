// Package storage defines the interface for hourbook storage backends.
package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/types"
)

// Storage defines the interface for hourbook storage backends
type Storage interface {
	// Projects
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id int64) (*types.Project, error)
	ListProjects(ctx context.Context, status types.ProjectStatus) ([]*types.Project, error)
	UpdateProject(ctx context.Context, id int64, u *types.ProjectUpdate) (*types.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	// Customers
	CreateCustomer(ctx context.Context, c *types.Customer) error
	GetCustomer(ctx context.Context, id int64) (*types.Customer, error)
	ListCustomers(ctx context.Context) ([]*types.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	// Time entries
	CreateTimeEntry(ctx context.Context, e *types.TimeEntry) error
	GetTimeEntry(ctx context.Context, id int64) (*types.TimeEntryWithProject, error)
	ListTimeEntries(ctx context.Context, filter types.TimeEntryFilter) ([]*types.TimeEntryWithProject, error)
	UpdateTimeEntry(ctx context.Context, id int64, u *types.TimeEntryUpdate) (*types.EntryChangeResult, error)
	DeleteTimeEntry(ctx context.Context, id int64) (*types.EntryChangeResult, error)
	GetUnbilledTimeEntries(ctx context.Context) ([]*types.TimeEntryWithProject, error)

	// Invoices
	CreateInvoice(ctx context.Context, in *types.InvoiceInput) (*types.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*types.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*types.Invoice, error)
	GetInvoiceWithEntries(ctx context.Context, id int64) (*types.InvoiceWithEntries, error)
	ListInvoices(ctx context.Context, filter types.InvoiceFilter) ([]*types.Invoice, error)
	UpdateInvoice(ctx context.Context, id int64, u *types.InvoiceUpdate) (*types.Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
	FinalizeInvoice(ctx context.Context, id int64) (*types.Invoice, error)
	CancelInvoice(ctx context.Context, id int64, reason string) (*types.Invoice, error)
	AddTimeEntriesToInvoice(ctx context.Context, invoiceID int64, entryIDs []int64) (*types.InvoiceWithEntries, error)
	RemoveTimeEntriesFromInvoice(ctx context.Context, entryIDs []int64) error
	GenerateNextInvoiceNumber(ctx context.Context) (string, error)
	ComputeInvoiceTotal(ctx context.Context, id int64) (decimal.Decimal, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Lifecycle
	Close() error
	Path() string

	// UnderlyingDB returns the underlying *sql.DB connection.
	// Callers must not close it.
	UnderlyingDB() *sql.DB
}
