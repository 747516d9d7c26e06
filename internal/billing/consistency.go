package billing

import (
	"fmt"
	"sort"

	"github.com/hourbook/hourbook/internal/types"
)

// Finding is one inconsistency between invoices and their time entries
type Finding struct {
	Code      string `json:"code"`
	InvoiceID int64  `json:"invoice_id,omitempty"`
	EntryID   int64  `json:"entry_id,omitempty"`
	Message   string `json:"message"`
}

// Finding codes
const (
	FindingDanglingInvoice  = "dangling_invoice_ref"
	FindingStaleUnbilled    = "stale_billing_status"
	FindingStatusMismatch   = "billing_status_mismatch"
	FindingStaleDraftTotal  = "stale_draft_total"
	FindingStaleDraftPeriod = "stale_service_period"
)

// CheckConsistency compares invoices against every time entry and reports
// where the denormalized billing fields have drifted. Finalized and cancelled
// totals are frozen and are not re-derived.
func CheckConsistency(invoices []*types.Invoice, entries []*types.TimeEntryWithProject) []Finding {
	byID := make(map[int64]*types.Invoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}
	linked := make(map[int64][]*types.TimeEntryWithProject)

	var findings []Finding
	for _, e := range entries {
		if e.InvoiceID == nil {
			if e.BillingStatus != types.BillingUnbilled {
				findings = append(findings, Finding{
					Code:    FindingStaleUnbilled,
					EntryID: e.ID,
					Message: fmt.Sprintf("entry %d has no invoice but is marked %s", e.ID, e.BillingStatus),
				})
			}
			continue
		}
		inv, ok := byID[*e.InvoiceID]
		if !ok {
			findings = append(findings, Finding{
				Code:      FindingDanglingInvoice,
				EntryID:   e.ID,
				InvoiceID: *e.InvoiceID,
				Message:   fmt.Sprintf("entry %d references missing invoice %d", e.ID, *e.InvoiceID),
			})
			continue
		}
		linked[inv.ID] = append(linked[inv.ID], e)
		if want, ok := BillingStatusFor(inv.Status); ok && e.BillingStatus != want {
			findings = append(findings, Finding{
				Code:      FindingStatusMismatch,
				EntryID:   e.ID,
				InvoiceID: inv.ID,
				Message: fmt.Sprintf("entry %d is marked %s but invoice %s is %s",
					e.ID, e.BillingStatus, inv.InvoiceNumber, inv.Status),
			})
		}
	}

	for _, inv := range invoices {
		if inv.Status != types.InvoiceDraft {
			continue
		}
		lines := LinesFromEntries(linked[inv.ID])
		if total := ComputeTotal(lines); !total.Equal(inv.TotalAmount) {
			findings = append(findings, Finding{
				Code:      FindingStaleDraftTotal,
				InvoiceID: inv.ID,
				Message: fmt.Sprintf("draft invoice %s stores total %s, entries add up to %s",
					inv.InvoiceNumber, inv.TotalAmount.StringFixed(2), total.StringFixed(2)),
			})
		}
		derived := *inv
		ApplyServicePeriod(&derived, lines)
		if derived.ServicePeriodStart != inv.ServicePeriodStart || derived.ServicePeriodEnd != inv.ServicePeriodEnd {
			findings = append(findings, Finding{
				Code:      FindingStaleDraftPeriod,
				InvoiceID: inv.ID,
				Message: fmt.Sprintf("draft invoice %s service period %s..%s, entries span %s..%s",
					inv.InvoiceNumber, inv.ServicePeriodStart, inv.ServicePeriodEnd,
					derived.ServicePeriodStart, derived.ServicePeriodEnd),
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].InvoiceID != findings[j].InvoiceID {
			return findings[i].InvoiceID < findings[j].InvoiceID
		}
		return findings[i].EntryID < findings[j].EntryID
	})
	return findings
}
