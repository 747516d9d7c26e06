// Package billing holds the pure billing rules: totals, tax, service period,
// invoice numbering, duration derivation and the invoice state machine.
// Nothing here touches the database; storage applies these rules inside its
// transactions.
package billing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/types"
)

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
)

// Line is the billing-relevant projection of a linked time entry
type Line struct {
	DurationMinutes int
	HourlyRate      decimal.NullDecimal
	Date            string
}

// LinesFromEntries projects joined entries into billing lines
func LinesFromEntries(entries []*types.TimeEntryWithProject) []Line {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{
			DurationMinutes: e.DurationMinutes,
			HourlyRate:      e.HourlyRate,
			Date:            e.Date,
		})
	}
	return lines
}

// LineAmount is minutes/60 × rate. A missing rate bills as zero.
func LineAmount(minutes int, rate decimal.NullDecimal) decimal.Decimal {
	if !rate.Valid {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(minutes)).Mul(rate.Decimal).Div(sixty)
}

// ComputeTotal sums the line amounts and rounds the result to cents
func ComputeTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineAmount(l.DurationMinutes, l.HourlyRate))
	}
	return total.Round(2)
}

// ComputeTax returns the tax owed on an invoice.
// Small businesses are exempt. External invoices with both net and gross
// amounts report the difference; everything else applies the tax rate to the total.
func ComputeTax(inv *types.Invoice) decimal.Decimal {
	if inv.IsSmallBusiness {
		return decimal.Zero
	}
	if inv.Type == types.InvoiceExternal && inv.NetAmount.Valid && inv.GrossAmount.Valid {
		return inv.GrossAmount.Decimal.Sub(inv.NetAmount.Decimal).Round(2)
	}
	return inv.TotalAmount.Mul(inv.TaxRate).Div(hundred).Round(2)
}

// DeriveServicePeriod returns the earliest and latest date of the lines.
// ok is false when there are no dated lines.
func DeriveServicePeriod(lines []Line) (start, end string, ok bool) {
	for _, l := range lines {
		if l.Date == "" {
			continue
		}
		// ISO dates order lexically
		if !ok || l.Date < start {
			start = l.Date
		}
		if !ok || l.Date > end {
			end = l.Date
		}
		ok = true
	}
	return start, end, ok
}

// ApplyServicePeriod overwrites each service-period boundary whose auto flag
// is set with the derived value. Manually set boundaries are left untouched.
func ApplyServicePeriod(inv *types.Invoice, lines []Line) {
	start, end, ok := DeriveServicePeriod(lines)
	if !ok {
		start, end = "", ""
	}
	if inv.ServicePeriodStartAuto {
		inv.ServicePeriodStart = start
	}
	if inv.ServicePeriodEndAuto {
		inv.ServicePeriodEnd = end
	}
}

// CheckServicePeriod rejects a service period that ends before it starts.
// Either boundary may be manual or derived.
func CheckServicePeriod(inv *types.Invoice) error {
	if inv.ServicePeriodStart == "" || inv.ServicePeriodEnd == "" {
		return nil
	}
	if inv.ServicePeriodStart > inv.ServicePeriodEnd {
		return fmt.Errorf("service period %s..%s ends before it starts: %w",
			inv.ServicePeriodStart, inv.ServicePeriodEnd, types.ErrInvalidDate)
	}
	return nil
}

// Recalculate refreshes the derived financial fields of an invoice from its lines:
// total, tax and the auto service-period boundaries.
func Recalculate(inv *types.Invoice, lines []Line) {
	inv.TotalAmount = ComputeTotal(lines)
	inv.TaxAmount = ComputeTax(inv)
	ApplyServicePeriod(inv, lines)
}

// NextInvoiceNumber returns YYYY-NNNN with NNNN one past the highest sequence
// already used for that year. Numbers that do not follow the scheme are ignored.
func NextInvoiceNumber(existing []string, year int) string {
	prefix := fmt.Sprintf("%04d-", year)
	highest := 0
	for _, n := range existing {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err != nil || seq < 0 {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%04d", prefix, highest+1)
}

// DurationFromTimes derives whole minutes between two HH:MM wall-clock times.
// An end before the start is taken to cross midnight.
func DurationFromTimes(start, end string) (int, error) {
	s, err := time.Parse(types.ClockLayout, start)
	if err != nil {
		return 0, fmt.Errorf("start time %q: %w", start, types.ErrInvalidTime)
	}
	e, err := time.Parse(types.ClockLayout, end)
	if err != nil {
		return 0, fmt.Errorf("end time %q: %w", end, types.ErrInvalidTime)
	}
	d := e.Sub(s)
	if d < 0 {
		d += 24 * time.Hour
	}
	minutes := int(d / time.Minute)
	if minutes <= 0 {
		return 0, fmt.Errorf("start %s equals end %s: %w", start, end, types.ErrInvalidDuration)
	}
	return minutes, nil
}

// ResolveDuration applies the entry duration rules: start/end win when both
// are present, otherwise the supplied duration must be positive.
func ResolveDuration(start, end string, duration int) (int, error) {
	if start != "" || end != "" {
		if start == "" || end == "" {
			return 0, fmt.Errorf("start and end time must be given together: %w", types.ErrMissingField)
		}
		return DurationFromTimes(start, end)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("duration %d: %w", duration, types.ErrInvalidDuration)
	}
	return duration, nil
}

// SortedUniqueIDs returns ids without duplicates in ascending order
func SortedUniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
