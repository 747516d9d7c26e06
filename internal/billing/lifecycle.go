package billing

import (
	"fmt"
	"strings"

	"github.com/hourbook/hourbook/internal/types"
)

// CheckFinalize guards draft -> invoiced
func CheckFinalize(status types.InvoiceStatus) error {
	switch status {
	case types.InvoiceDraft:
		return nil
	case types.InvoiceCancelled:
		return fmt.Errorf("cannot finalize: %w", types.ErrInvoiceAlreadyCancelled)
	default:
		return fmt.Errorf("cannot finalize %s invoice: %w", status, types.ErrInvoiceNotDraft)
	}
}

// CheckCancel guards draft|invoiced -> cancelled. The reason is validated first.
func CheckCancel(status types.InvoiceStatus, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return types.ErrEmptyCancellationReason
	}
	if status == types.InvoiceCancelled {
		return fmt.Errorf("cannot cancel: %w", types.ErrInvoiceAlreadyCancelled)
	}
	return nil
}

// CheckDelete allows deletion of draft and cancelled invoices only
func CheckDelete(status types.InvoiceStatus) error {
	if status == types.InvoiceInvoiced {
		return types.ErrDeleteInvoiced
	}
	return nil
}

// CheckCanAttach allows entries to be added to draft invoices only
func CheckCanAttach(status types.InvoiceStatus) error {
	switch status {
	case types.InvoiceDraft:
		return nil
	case types.InvoiceInvoiced:
		return fmt.Errorf("cannot add entries: %w", types.ErrInvoiceLocked)
	default:
		return fmt.Errorf("cannot add entries to %s invoice: %w", status, types.ErrInvoiceNotDraft)
	}
}

// CheckCanDetach rejects removing entries from a finalized invoice
func CheckCanDetach(status types.InvoiceStatus) error {
	if status == types.InvoiceInvoiced {
		return fmt.Errorf("cannot remove entries: %w", types.ErrInvoiceLocked)
	}
	return nil
}

// CheckUpdate enforces which invoice fields may change in each state
func CheckUpdate(status types.InvoiceStatus, u *types.InvoiceUpdate) error {
	if u.CancellationReason != nil {
		if status != types.InvoiceCancelled {
			return fmt.Errorf("cancellation reason on %s invoice: %w", status, types.ErrInvoiceNotCancelled)
		}
		if strings.TrimSpace(*u.CancellationReason) == "" {
			return types.ErrEmptyCancellationReason
		}
	}
	if status != types.InvoiceDraft && !u.OnlyNotesOrReason() {
		return fmt.Errorf("only notes may change on a %s invoice: %w", status, types.ErrInvoiceNotDraft)
	}
	return nil
}

// EntryEditPolicy decides whether a time entry linked to an invoice in the
// given status may be edited or deleted. warn is set when the edit changes a
// draft invoice's totals.
func EntryEditPolicy(invoiceStatus types.InvoiceStatus) (warn bool, err error) {
	switch invoiceStatus {
	case types.InvoiceInvoiced:
		return false, types.ErrEntryLocked
	case types.InvoiceDraft:
		return true, nil
	}
	return false, nil
}

// BillingStatusFor maps an invoice status to the billing label of its entries.
// Cancelled invoices have no mapping: their entries keep the label they had.
func BillingStatusFor(status types.InvoiceStatus) (types.BillingStatus, bool) {
	switch status {
	case types.InvoiceDraft:
		return types.BillingInDraft, true
	case types.InvoiceInvoiced:
		return types.BillingInvoiced, true
	}
	return "", false
}
