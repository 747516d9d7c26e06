//go:build bench

package sqlite

import (
	"context"
	"testing"

	"github.com/hourbook/hourbook/internal/types"
)

// runBenchmark handles store setup, timer management and allocation
// reporting uniformly across all benchmarks.
func runBenchmark(b *testing.B, setupFunc func(*testing.B) (*SQLiteStorage, func()), testFunc func(*SQLiteStorage, context.Context) error) {
	b.Helper()

	store, cleanup := setupFunc(b)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := testFunc(store, ctx); err != nil {
			b.Fatalf("benchmark failed: %v", err)
		}
	}
}

func BenchmarkGetUnbilledTimeEntries_Large(b *testing.B) {
	runBenchmark(b, setupLargeBenchDB, func(store *SQLiteStorage, ctx context.Context) error {
		_, err := store.GetUnbilledTimeEntries(ctx)
		return err
	})
}

func BenchmarkGetUnbilledTimeEntries_XLarge(b *testing.B) {
	runBenchmark(b, setupXLargeBenchDB, func(store *SQLiteStorage, ctx context.Context) error {
		_, err := store.GetUnbilledTimeEntries(ctx)
		return err
	})
}

func BenchmarkListTimeEntries_Large_DateRange(b *testing.B) {
	filter := types.TimeEntryFilter{From: "2025-01-01", To: "2025-03-31"}
	runBenchmark(b, setupLargeBenchDB, func(store *SQLiteStorage, ctx context.Context) error {
		_, err := store.ListTimeEntries(ctx, filter)
		return err
	})
}

func BenchmarkListInvoices_Large(b *testing.B) {
	runBenchmark(b, setupLargeBenchDB, func(store *SQLiteStorage, ctx context.Context) error {
		_, err := store.ListInvoices(ctx, types.InvoiceFilter{Status: types.InvoiceInvoiced})
		return err
	})
}

func BenchmarkGenerateNextInvoiceNumber_XLarge(b *testing.B) {
	runBenchmark(b, setupXLargeBenchDB, func(store *SQLiteStorage, ctx context.Context) error {
		_, err := store.GenerateNextInvoiceNumber(ctx)
		return err
	})
}

// BenchmarkDraftRoundTrip attaches a batch of unbilled entries to a fresh
// draft and releases them again, exercising total and period recomputation.
func BenchmarkDraftRoundTrip_Large(b *testing.B) {
	store, cleanup := setupLargeBenchDB(b)
	defer cleanup()
	ctx := context.Background()

	unbilled, err := store.GetUnbilledTimeEntries(ctx)
	if err != nil {
		b.Fatalf("GetUnbilledTimeEntries failed: %v", err)
	}
	if len(unbilled) < 50 {
		b.Skip("not enough unbilled entries")
	}
	ids := make([]int64, 0, 50)
	for _, e := range unbilled[:50] {
		ids = append(ids, e.ID)
	}
	inv, err := store.CreateInvoice(ctx, &types.InvoiceInput{})
	if err != nil {
		b.Fatalf("CreateInvoice failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.AddTimeEntriesToInvoice(ctx, inv.ID, ids); err != nil {
			b.Fatalf("AddTimeEntriesToInvoice failed: %v", err)
		}
		if err := store.RemoveTimeEntriesFromInvoice(ctx, ids); err != nil {
			b.Fatalf("RemoveTimeEntriesFromInvoice failed: %v", err)
		}
	}
}
