// Package types defines core data structures for the hourbook time tracker
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for entry dates and invoice dates
const DateLayout = "2006-01-02"

// ClockLayout is the wall-clock format used for entry start/end times
const ClockLayout = "15:04"

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

// Project status constants
const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectPaused    ProjectStatus = "paused"
)

// IsValid checks if the project status value is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectPaused:
		return true
	}
	return false
}

// BillingStatus is the denormalized billing label stored on a time entry.
// It always mirrors the status of the invoice the entry is linked to.
type BillingStatus string

// Billing status constants
const (
	BillingUnbilled BillingStatus = "unbilled"
	BillingInDraft  BillingStatus = "in_draft"
	BillingInvoiced BillingStatus = "invoiced"
)

// IsValid checks if the billing status value is valid
func (s BillingStatus) IsValid() bool {
	switch s {
	case BillingUnbilled, BillingInDraft, BillingInvoiced:
		return true
	}
	return false
}

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

// Invoice status constants
const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceInvoiced  InvoiceStatus = "invoiced"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// IsValid checks if the invoice status value is valid
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceInvoiced, InvoiceCancelled:
		return true
	}
	return false
}

// InvoiceType distinguishes invoices written here from invoices issued elsewhere
type InvoiceType string

// Invoice type constants
const (
	InvoiceInternal InvoiceType = "internal"
	InvoiceExternal InvoiceType = "external"
)

// IsValid checks if the invoice type value is valid
func (t InvoiceType) IsValid() bool {
	return t == InvoiceInternal || t == InvoiceExternal
}

// Customer is a billable party. Projects may link to a customer.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the customer has valid field values
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("customer name: %w", ErrMissingField)
	}
	return nil
}

// Project groups time entries and carries the hourly rate used for billing
type Project struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	HourlyRate decimal.NullDecimal `json:"hourly_rate"`
	ClientName string              `json:"client_name,omitempty"` // legacy free-text client
	CustomerID *int64              `json:"customer_id,omitempty"`
	Status     ProjectStatus       `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Validate checks if the project has valid field values
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name: %w", ErrMissingField)
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("project status %q: %w", p.Status, ErrInvalidStatus)
	}
	if p.HourlyRate.Valid && p.HourlyRate.Decimal.IsNegative() {
		return fmt.Errorf("hourly rate %s: %w", p.HourlyRate.Decimal, ErrInvalidAmount)
	}
	return nil
}

// ProjectUpdate carries a partial update for a project. Nil fields are left unchanged.
type ProjectUpdate struct {
	Name            *string          `json:"name,omitempty"`
	HourlyRate      *decimal.Decimal `json:"hourly_rate,omitempty"`
	ClearHourlyRate bool             `json:"clear_hourly_rate,omitempty"`
	ClientName      *string          `json:"client_name,omitempty"`
	CustomerID      *int64           `json:"customer_id,omitempty"`
	ClearCustomer   bool             `json:"clear_customer,omitempty"`
	Status          *ProjectStatus   `json:"status,omitempty"`
}

// TimeEntry is a single logged duration against a project and date
type TimeEntry struct {
	ID              int64         `json:"id"`
	ProjectID       int64         `json:"project_id"`
	Date            string        `json:"date"`
	StartTime       string        `json:"start_time,omitempty"`
	EndTime         string        `json:"end_time,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	Description     string        `json:"description,omitempty"`
	InvoiceID       *int64        `json:"invoice_id,omitempty"`
	BillingStatus   BillingStatus `json:"billing_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TimeEntryWithProject is a time entry joined with the display fields of its project
type TimeEntryWithProject struct {
	TimeEntry
	ProjectName string              `json:"project_name"`
	HourlyRate  decimal.NullDecimal `json:"hourly_rate"`
}

// TimeEntryUpdate carries a partial update for a time entry. Nil fields are left unchanged.
// Billing fields are intentionally absent: only invoice operations mutate them.
type TimeEntryUpdate struct {
	ProjectID       *int64  `json:"project_id,omitempty"`
	Date            *string `json:"date,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Description     *string `json:"description,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u *TimeEntryUpdate) IsEmpty() bool {
	return u.ProjectID == nil && u.Date == nil && u.StartTime == nil &&
		u.EndTime == nil && u.DurationMinutes == nil && u.Description == nil
}

// EntryChangeResult is returned by entry edits and deletions. Warning is set
// when the change re-priced a draft invoice.
type EntryChangeResult struct {
	Entry   *TimeEntryWithProject `json:"entry,omitempty"`
	Warning string                `json:"warning,omitempty"`
}

// TimeEntryFilter narrows ListTimeEntries results
type TimeEntryFilter struct {
	ProjectID     *int64
	From          string // inclusive YYYY-MM-DD
	To            string // inclusive YYYY-MM-DD
	BillingStatus BillingStatus
	Limit         int
}

// Invoice bundles time entries for billing
type Invoice struct {
	ID                     int64               `json:"id"`
	InvoiceNumber          string              `json:"invoice_number"`
	InvoiceDate            string              `json:"invoice_date"`
	Status                 InvoiceStatus       `json:"status"`
	TotalAmount            decimal.Decimal     `json:"total_amount"`
	Notes                  string              `json:"notes,omitempty"`
	CancellationReason     string              `json:"cancellation_reason,omitempty"`
	Type                   InvoiceType         `json:"type"`
	ExternalInvoiceNumber  string              `json:"external_invoice_number,omitempty"`
	NetAmount              decimal.NullDecimal `json:"net_amount"`
	GrossAmount            decimal.NullDecimal `json:"gross_amount"`
	TaxRate                decimal.Decimal     `json:"tax_rate"`
	IsSmallBusiness        bool                `json:"is_small_business"`
	TaxAmount              decimal.Decimal     `json:"tax_amount"`
	ServicePeriodStart     string              `json:"service_period_start,omitempty"`
	ServicePeriodEnd       string              `json:"service_period_end,omitempty"`
	ServicePeriodStartAuto bool                `json:"service_period_start_auto"`
	ServicePeriodEndAuto   bool                `json:"service_period_end_auto"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// InvoiceWithEntries is an invoice together with its currently linked entries
type InvoiceWithEntries struct {
	Invoice
	Entries []*TimeEntryWithProject `json:"entries"`
}

// InvoiceInput describes a new invoice. An empty InvoiceNumber is generated.
type InvoiceInput struct {
	InvoiceNumber         string              `json:"invoice_number,omitempty"`
	InvoiceDate           string              `json:"invoice_date,omitempty"`
	Notes                 string              `json:"notes,omitempty"`
	Type                  InvoiceType         `json:"type,omitempty"`
	ExternalInvoiceNumber string              `json:"external_invoice_number,omitempty"`
	NetAmount             decimal.NullDecimal `json:"net_amount"`
	GrossAmount           decimal.NullDecimal `json:"gross_amount"`
	TaxRate               decimal.Decimal     `json:"tax_rate"`
	IsSmallBusiness       bool                `json:"is_small_business,omitempty"`
	ServicePeriodStart    string              `json:"service_period_start,omitempty"`
	ServicePeriodEnd      string              `json:"service_period_end,omitempty"`
	EntryIDs              []int64             `json:"entry_ids,omitempty"`
}

// Validate checks the input and fills defaults
func (in *InvoiceInput) Validate() error {
	if in.Type == "" {
		in.Type = InvoiceInternal
	}
	if !in.Type.IsValid() {
		return fmt.Errorf("invoice type %q: %w", in.Type, ErrInvalidStatus)
	}
	if in.InvoiceDate != "" {
		if err := ValidateDate(in.InvoiceDate); err != nil {
			return err
		}
	}
	for _, d := range []string{in.ServicePeriodStart, in.ServicePeriodEnd} {
		if d == "" {
			continue
		}
		if err := ValidateDate(d); err != nil {
			return err
		}
	}
	if in.TaxRate.IsNegative() {
		return fmt.Errorf("tax rate %s: %w", in.TaxRate, ErrInvalidAmount)
	}
	return nil
}

// InvoiceUpdate carries a partial update for an invoice. Nil fields are left unchanged.
// While the invoice is a draft every field may change; afterwards only Notes,
// and CancellationReason on a cancelled invoice.
type InvoiceUpdate struct {
	InvoiceNumber           *string          `json:"invoice_number,omitempty"`
	InvoiceDate             *string          `json:"invoice_date,omitempty"`
	Notes                   *string          `json:"notes,omitempty"`
	CancellationReason      *string          `json:"cancellation_reason,omitempty"`
	Type                    *InvoiceType     `json:"type,omitempty"`
	ExternalInvoiceNumber   *string          `json:"external_invoice_number,omitempty"`
	NetAmount               *decimal.Decimal `json:"net_amount,omitempty"`
	GrossAmount             *decimal.Decimal `json:"gross_amount,omitempty"`
	TaxRate                 *decimal.Decimal `json:"tax_rate,omitempty"`
	IsSmallBusiness         *bool            `json:"is_small_business,omitempty"`
	ServicePeriodStart      *string          `json:"service_period_start,omitempty"`
	ServicePeriodEnd        *string          `json:"service_period_end,omitempty"`
	ResetServicePeriodStart bool             `json:"reset_service_period_start,omitempty"`
	ResetServicePeriodEnd   bool             `json:"reset_service_period_end,omitempty"`
}

// OnlyNotesOrReason reports whether the update touches nothing but notes and cancellation reason
func (u *InvoiceUpdate) OnlyNotesOrReason() bool {
	return u.InvoiceNumber == nil && u.InvoiceDate == nil && u.Type == nil &&
		u.ExternalInvoiceNumber == nil && u.NetAmount == nil && u.GrossAmount == nil &&
		u.TaxRate == nil && u.IsSmallBusiness == nil &&
		u.ServicePeriodStart == nil && u.ServicePeriodEnd == nil &&
		!u.ResetServicePeriodStart && !u.ResetServicePeriodEnd
}

// InvoiceFilter narrows ListInvoices results
type InvoiceFilter struct {
	Status InvoiceStatus
	Type   InvoiceType
	Limit  int
}

// SchemaMigrationRecord is one row of the append-only migration ledger
type SchemaMigrationRecord struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// ValidateDate checks a YYYY-MM-DD calendar date
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("date %q: %w", s, ErrInvalidDate)
	}
	return nil
}

// ValidateClock checks an HH:MM wall-clock time
func ValidateClock(s string) error {
	if _, err := time.Parse(ClockLayout, s); err != nil {
		return fmt.Errorf("time %q: %w", s, ErrInvalidTime)
	}
	return nil
}
