package types

import "errors"

// Error kinds. Every named condition below matches exactly one kind via errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrIntegrity  = errors.New("integrity violation")
)

// Error is a named, typed failure condition returned by storage and billing operations
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches the error's kind in addition to pointer identity
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Not found conditions
var (
	ErrProjectNotFound  = newError(ErrNotFound, "project_not_found", "project not found")
	ErrCustomerNotFound = newError(ErrNotFound, "customer_not_found", "customer not found")
	ErrEntryNotFound    = newError(ErrNotFound, "entry_not_found", "time entry not found")
	ErrInvoiceNotFound  = newError(ErrNotFound, "invoice_not_found", "invoice not found")
)

// Validation conditions
var (
	ErrEmptyCancellationReason = newError(ErrValidation, "empty_cancellation_reason", "cancellation reason must not be empty")
	ErrInvalidDuration         = newError(ErrValidation, "invalid_duration", "duration must be a positive number of minutes")
	ErrInvalidDate             = newError(ErrValidation, "invalid_date", "date must be YYYY-MM-DD")
	ErrInvalidTime             = newError(ErrValidation, "invalid_time", "time must be HH:MM")
	ErrMissingField            = newError(ErrValidation, "missing_field", "required field is missing")
	ErrInvalidStatus           = newError(ErrValidation, "invalid_status", "invalid status value")
	ErrInvalidAmount           = newError(ErrValidation, "invalid_amount", "amount must not be negative")
	ErrEmptyEntrySet           = newError(ErrValidation, "empty_entry_set", "no time entries given")
	ErrEntryNotAttached        = newError(ErrValidation, "entry_not_attached", "time entry is not attached to an invoice")
)

// Conflict conditions
var (
	ErrInvoiceNotDraft         = newError(ErrConflict, "invoice_not_draft", "invoice is not a draft")
	ErrInvoiceAlreadyCancelled = newError(ErrConflict, "invoice_already_cancelled", "invoice is already cancelled")
	ErrInvoiceNotCancelled     = newError(ErrConflict, "invoice_not_cancelled", "only cancelled invoices carry a cancellation reason")
	ErrInvoiceLocked           = newError(ErrConflict, "invoice_locked", "invoice is finalized; its entries are locked")
	ErrEntryAlreadyAttached    = newError(ErrConflict, "entry_already_attached", "time entry is already attached to an invoice")
	ErrDuplicateInvoiceNumber  = newError(ErrConflict, "duplicate_invoice_number", "invoice number already exists")
	ErrProjectInUse            = newError(ErrConflict, "project_in_use", "project still has time entries")
	ErrEntryLocked             = newError(ErrConflict, "entry_locked", "time entry belongs to a finalized invoice")
)

// Integrity violations indicate a programming error or a corrupted store
var (
	ErrDeleteInvoiced     = newError(ErrIntegrity, "delete_invoiced", "finalized invoices cannot be deleted")
	ErrDanglingInvoiceRef = newError(ErrIntegrity, "dangling_invoice_ref", "time entry references a missing invoice")
)

// KindOf returns the short kind name for err: validation, conflict, not_found,
// integrity, or the empty string for untyped errors.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	}
	return ""
}

// CodeOf returns the named condition code of err, if any
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
