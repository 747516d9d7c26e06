package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setClock(s *SQLiteStorage, at time.Time) {
	s.now = func() time.Time { return at }
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func mustProject(t *testing.T, s *SQLiteStorage, name, rate string) *types.Project {
	t.Helper()
	p := &types.Project{Name: name}
	if rate != "" {
		p.HourlyRate = decimal.NewNullDecimal(dec(rate))
	}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject(%s) failed: %v", name, err)
	}
	return p
}

func mustEntry(t *testing.T, s *SQLiteStorage, projectID int64, date string, minutes int) *types.TimeEntry {
	t.Helper()
	e := &types.TimeEntry{ProjectID: projectID, Date: date, DurationMinutes: minutes}
	if err := s.CreateTimeEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateTimeEntry(%s, %d) failed: %v", date, minutes, err)
	}
	return e
}

func mustInvoice(t *testing.T, s *SQLiteStorage, in *types.InvoiceInput) *types.Invoice {
	t.Helper()
	inv, err := s.CreateInvoice(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return inv
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

func assertAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func entryState(t *testing.T, s *SQLiteStorage, id int64) (types.BillingStatus, *int64) {
	t.Helper()
	e, err := s.GetTimeEntry(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTimeEntry(%d) failed: %v", id, err)
	}
	return e.BillingStatus, e.InvoiceID
}
