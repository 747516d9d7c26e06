// Package hourbook provides a minimal public API for programs that want to
// read or write an hourbook ledger without going through the hb CLI.
//
// It exports the storage constructor, workspace discovery and the core
// record types. Billing rules live behind the storage layer, so every write
// made through Storage keeps invoices and entries consistent.
package hourbook

import (
	"github.com/hourbook/hourbook/internal/storage"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/workspace"
)

// Storage is the interface for hourbook storage operations
type Storage = storage.Storage

// NewSQLiteStorage opens the ledger at dbPath, creating it and applying any
// pending schema migrations first
func NewSQLiteStorage(dbPath string) (Storage, error) {
	s, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindDatabasePath finds the hourbook database in the current directory tree.
// Returns empty string if none is found.
func FindDatabasePath() string {
	return workspace.FindDatabasePath()
}

// FindWorkspaceDir finds the .hourbook/ directory in the current directory tree
func FindWorkspaceDir() string {
	return workspace.FindDir()
}

// Core types from internal/types
type (
	Customer             = types.Customer
	Project              = types.Project
	ProjectStatus        = types.ProjectStatus
	ProjectUpdate        = types.ProjectUpdate
	TimeEntry            = types.TimeEntry
	TimeEntryWithProject = types.TimeEntryWithProject
	TimeEntryUpdate      = types.TimeEntryUpdate
	TimeEntryFilter      = types.TimeEntryFilter
	EntryChangeResult    = types.EntryChangeResult
	BillingStatus        = types.BillingStatus
	Invoice              = types.Invoice
	InvoiceWithEntries   = types.InvoiceWithEntries
	InvoiceInput         = types.InvoiceInput
	InvoiceUpdate        = types.InvoiceUpdate
	InvoiceFilter        = types.InvoiceFilter
	InvoiceStatus        = types.InvoiceStatus
	InvoiceType          = types.InvoiceType
)

// ProjectStatus constants
const (
	ProjectActive    = types.ProjectActive
	ProjectCompleted = types.ProjectCompleted
	ProjectPaused    = types.ProjectPaused
)

// BillingStatus constants
const (
	BillingUnbilled = types.BillingUnbilled
	BillingInDraft  = types.BillingInDraft
	BillingInvoiced = types.BillingInvoiced
)

// InvoiceStatus constants
const (
	InvoiceDraft     = types.InvoiceDraft
	InvoiceInvoiced  = types.InvoiceInvoiced
	InvoiceCancelled = types.InvoiceCancelled
)

// InvoiceType constants
const (
	InvoiceInternal = types.InvoiceInternal
	InvoiceExternal = types.InvoiceExternal
)

// Errors callers commonly match with errors.Is
var (
	ErrNotFound      = types.ErrNotFound
	ErrValidation    = types.ErrValidation
	ErrConflict      = types.ErrConflict
	ErrInvoiceLocked = types.ErrInvoiceLocked
)
