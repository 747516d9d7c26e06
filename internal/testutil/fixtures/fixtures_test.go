package fixtures

import (
	"context"
	"testing"

	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/types"
)

func smallConfig() DataConfig {
	cfg := DefaultLargeConfig()
	cfg.Customers = 3
	cfg.Projects = 6
	cfg.Entries = 120
	cfg.EntriesPerBill = 10
	return cfg
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	cfg := smallConfig()
	sum, err := Generate(ctx, store, cfg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if sum.Entries != cfg.Entries || sum.Projects != cfg.Projects || sum.Customers != cfg.Customers {
		t.Errorf("summary = %+v, want %d entries, %d projects, %d customers", sum, cfg.Entries, cfg.Projects, cfg.Customers)
	}
	// 60% of 120 entries in batches of 10
	if sum.Invoices != 8 {
		t.Errorf("invoices = %d, want 8", sum.Invoices)
	}

	unbilled, err := store.GetUnbilledTimeEntries(ctx)
	if err != nil {
		t.Fatalf("GetUnbilledTimeEntries failed: %v", err)
	}
	if len(unbilled) != cfg.Entries-80 {
		t.Errorf("unbilled entries = %d, want %d", len(unbilled), cfg.Entries-80)
	}

	invoices, err := store.ListInvoices(ctx, types.InvoiceFilter{})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	for _, inv := range invoices {
		full, err := store.GetInvoiceWithEntries(ctx, inv.ID)
		if err != nil {
			t.Fatalf("GetInvoiceWithEntries failed: %v", err)
		}
		want, hasMapping := billingStatusOf(inv.Status)
		for _, e := range full.Entries {
			if hasMapping && e.BillingStatus != want {
				t.Errorf("invoice %s (%s) has entry %d labelled %s", inv.InvoiceNumber, inv.Status, e.ID, e.BillingStatus)
			}
		}
		if inv.Status == types.InvoiceCancelled {
			continue
		}
		total, err := store.ComputeInvoiceTotal(ctx, inv.ID)
		if err != nil {
			t.Fatalf("ComputeInvoiceTotal failed: %v", err)
		}
		if !total.Equal(inv.TotalAmount) {
			t.Errorf("invoice %s stored total %s, computed %s", inv.InvoiceNumber, inv.TotalAmount, total)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	ctx := context.Background()
	counts := func() *Summary {
		store, err := sqlite.New(":memory:")
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}
		defer func() { _ = store.Close() }()
		sum, err := Generate(ctx, store, smallConfig())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		return sum
	}
	if a, b := counts(), counts(); *a != *b {
		t.Errorf("same seed produced %+v and %+v", a, b)
	}
}

func TestLargeSQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large fixture in short mode")
	}
	store, err := sqlite.New(t.TempDir() + "/large.db")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := LargeSQLite(ctx, store); err != nil {
		t.Fatalf("LargeSQLite failed: %v", err)
	}
	entries, err := store.ListTimeEntries(ctx, types.TimeEntryFilter{})
	if err != nil {
		t.Fatalf("ListTimeEntries failed: %v", err)
	}
	if len(entries) != 10000 {
		t.Errorf("Expected 10000 entries, got %d", len(entries))
	}
}

func billingStatusOf(s types.InvoiceStatus) (types.BillingStatus, bool) {
	switch s {
	case types.InvoiceDraft:
		return types.BillingInDraft, true
	case types.InvoiceInvoiced:
		return types.BillingInvoiced, true
	}
	return "", false
}
