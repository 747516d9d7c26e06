package billing

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/types"
)

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  string
	}{
		{
			name: "two entries at 100/h",
			lines: []Line{
				{DurationMinutes: 90, HourlyRate: rate("100")},
				{DurationMinutes: 30, HourlyRate: rate("100")},
			},
			want: "200",
		},
		{
			name: "missing rate bills zero",
			lines: []Line{
				{DurationMinutes: 60, HourlyRate: rate("80")},
				{DurationMinutes: 120},
			},
			want: "80",
		},
		{
			name: "fractional rate rounds to cents",
			lines: []Line{
				{DurationMinutes: 20, HourlyRate: rate("85.50")},
			},
			want: "28.5",
		},
		{
			name: "thirds round half up",
			lines: []Line{
				{DurationMinutes: 1, HourlyRate: rate("1")},
				{DurationMinutes: 1, HourlyRate: rate("1")},
			},
			want: "0.03",
		},
		{
			name: "no lines",
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotal(tt.lines)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ComputeTotal() = %s; want %s", got, tt.want)
			}
		})
	}
}

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name string
		inv  types.Invoice
		want string
	}{
		{
			name: "standard rate",
			inv:  types.Invoice{Type: types.InvoiceInternal, TotalAmount: decimal.NewFromInt(200), TaxRate: decimal.NewFromInt(19)},
			want: "38",
		},
		{
			name: "small business is exempt",
			inv:  types.Invoice{Type: types.InvoiceInternal, TotalAmount: decimal.NewFromInt(200), TaxRate: decimal.NewFromInt(19), IsSmallBusiness: true},
			want: "0",
		},
		{
			name: "external uses gross minus net",
			inv: types.Invoice{
				Type:        types.InvoiceExternal,
				NetAmount:   rate("1000"),
				GrossAmount: rate("1190"),
				TaxRate:     decimal.NewFromInt(7),
			},
			want: "190",
		},
		{
			name: "external without gross falls back to rate",
			inv: types.Invoice{
				Type:        types.InvoiceExternal,
				TotalAmount: decimal.NewFromInt(100),
				NetAmount:   rate("1000"),
				TaxRate:     decimal.NewFromInt(7),
			},
			want: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTax(&tt.inv)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ComputeTax() = %s; want %s", got, tt.want)
			}
		})
	}
}

func TestApplyServicePeriod(t *testing.T) {
	lines := []Line{{Date: "2024-01-10"}, {Date: "2024-01-05"}, {Date: "2024-01-07"}}

	t.Run("both auto", func(t *testing.T) {
		inv := &types.Invoice{ServicePeriodStartAuto: true, ServicePeriodEndAuto: true}
		ApplyServicePeriod(inv, lines)
		if inv.ServicePeriodStart != "2024-01-05" || inv.ServicePeriodEnd != "2024-01-10" {
			t.Errorf("got period %s..%s; want 2024-01-05..2024-01-10", inv.ServicePeriodStart, inv.ServicePeriodEnd)
		}
	})

	t.Run("manual start survives", func(t *testing.T) {
		inv := &types.Invoice{
			ServicePeriodStart:   "2024-01-01",
			ServicePeriodEndAuto: true,
		}
		ApplyServicePeriod(inv, lines)
		if inv.ServicePeriodStart != "2024-01-01" {
			t.Errorf("manual start overwritten: %s", inv.ServicePeriodStart)
		}
		if inv.ServicePeriodEnd != "2024-01-10" {
			t.Errorf("end = %s; want 2024-01-10", inv.ServicePeriodEnd)
		}
	})

	t.Run("no entries clears auto boundaries", func(t *testing.T) {
		inv := &types.Invoice{
			ServicePeriodStart:     "2024-01-05",
			ServicePeriodEnd:       "2024-01-10",
			ServicePeriodStartAuto: true,
			ServicePeriodEndAuto:   false,
		}
		ApplyServicePeriod(inv, nil)
		if inv.ServicePeriodStart != "" {
			t.Errorf("start = %q; want empty", inv.ServicePeriodStart)
		}
		if inv.ServicePeriodEnd != "2024-01-10" {
			t.Errorf("manual end changed to %q", inv.ServicePeriodEnd)
		}
	})
}

func TestCheckServicePeriod(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"ordered", "2024-01-05", "2024-01-10", false},
		{"single day", "2024-01-05", "2024-01-05", false},
		{"open end", "2024-02-01", "", false},
		{"reversed", "2024-02-01", "2024-01-10", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &types.Invoice{ServicePeriodStart: tt.start, ServicePeriodEnd: tt.end}
			err := CheckServicePeriod(inv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckServicePeriod(%s..%s) = %v, wantErr %v", tt.start, tt.end, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrInvalidDate) {
				t.Errorf("error = %v, want ErrInvalidDate", err)
			}
		})
	}
}

func TestRecalculateScenario(t *testing.T) {
	inv := &types.Invoice{
		Type:                   types.InvoiceInternal,
		TaxRate:                decimal.NewFromInt(19),
		ServicePeriodStartAuto: true,
		ServicePeriodEndAuto:   true,
	}
	entries := []*types.TimeEntryWithProject{
		{TimeEntry: types.TimeEntry{DurationMinutes: 90, Date: "2024-01-05"}, HourlyRate: rate("100")},
		{TimeEntry: types.TimeEntry{DurationMinutes: 30, Date: "2024-01-10"}, HourlyRate: rate("100")},
	}
	Recalculate(inv, LinesFromEntries(entries))

	if !inv.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("total = %s; want 200", inv.TotalAmount)
	}
	if !inv.TaxAmount.Equal(decimal.NewFromInt(38)) {
		t.Errorf("tax = %s; want 38", inv.TaxAmount)
	}
	if inv.ServicePeriodStart != "2024-01-05" || inv.ServicePeriodEnd != "2024-01-10" {
		t.Errorf("period = %s..%s", inv.ServicePeriodStart, inv.ServicePeriodEnd)
	}
}

func TestNextInvoiceNumber(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		year     int
		expected string
	}{
		{"empty", nil, 2024, "2024-0001"},
		{"sequential", []string{"2024-0001", "2024-0002"}, 2024, "2024-0003"},
		{"gap uses max", []string{"2024-0001", "2024-0007"}, 2024, "2024-0008"},
		{"other years ignored", []string{"2023-0042"}, 2024, "2024-0001"},
		{"foreign numbers ignored", []string{"INV-99", "2024-abc", "2024-0003"}, 2024, "2024-0004"},
		{"past four digits", []string{"2024-9999"}, 2024, "2024-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NextInvoiceNumber(tt.existing, tt.year)
			if result != tt.expected {
				t.Errorf("NextInvoiceNumber(%v, %d) = %q; want %q", tt.existing, tt.year, result, tt.expected)
			}
		})
	}
}

func TestDurationFromTimes(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
		wantErr    error
	}{
		{"09:00", "10:30", 90, nil},
		{"23:30", "00:15", 45, nil},
		{"08:00", "08:00", 0, types.ErrInvalidDuration},
		{"8am", "09:00", 0, types.ErrInvalidTime},
		{"09:00", "25:00", 0, types.ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			got, err := DurationFromTimes(tt.start, tt.end)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DurationFromTimes(%s, %s) = %d; want %d", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestResolveDuration(t *testing.T) {
	// start/end override the supplied duration
	got, err := ResolveDuration("09:00", "09:45", 600)
	if err != nil || got != 45 {
		t.Errorf("ResolveDuration with times = %d, %v; want 45", got, err)
	}

	if _, err := ResolveDuration("09:00", "", 0); !errors.Is(err, types.ErrMissingField) {
		t.Errorf("half-specified times: err = %v", err)
	}
	if _, err := ResolveDuration("", "", 0); !errors.Is(err, types.ErrInvalidDuration) {
		t.Errorf("zero duration: err = %v", err)
	}
	if _, err := ResolveDuration("", "", -5); !errors.Is(err, types.ErrValidation) {
		t.Errorf("negative duration should be a validation error, got %v", err)
	}
}

func TestSortedUniqueIDs(t *testing.T) {
	got := SortedUniqueIDs([]int64{5, 1, 5, 3, 1})
	if diff := cmp.Diff([]int64{1, 3, 5}, got); diff != "" {
		t.Errorf("SortedUniqueIDs mismatch (-want +got):\n%s", diff)
	}
}
