// Package fixtures provides realistic test data generation for benchmarks and tests.
package fixtures

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/storage"
	"github.com/hourbook/hourbook/internal/types"
)

var customerNames = []string{
	"Acme GmbH",
	"Globex Corporation",
	"Initech",
	"Umbrella Services",
	"Stark Industries",
	"Wayne Enterprises",
	"Hooli",
	"Vandelay Industries",
}

var projectNames = []string{
	"Website Relaunch",
	"Mobile App",
	"Data Migration",
	"Security Audit",
	"API Integration",
	"Support Retainer",
	"Analytics Dashboard",
	"Payment Gateway",
	"Internal Tooling",
	"Onboarding Flow",
}

var descriptions = []string{
	"Kickoff call",
	"Requirements workshop",
	"Implementation",
	"Code review",
	"Bug fixing",
	"Deployment",
	"Documentation",
	"Status meeting",
	"Performance tuning",
	"Client support",
}

// hourly rates in whole currency units; zero means no rate
var rates = []int64{0, 65, 80, 95, 110, 125, 150}

// DataConfig controls the distribution and characteristics of generated test data
type DataConfig struct {
	Customers      int     // number of customers
	Projects       int     // number of projects, spread over customers
	Entries        int     // total number of time entries
	EntriesPerBill int     // entries bundled into each invoice
	BilledRatio    float64 // share of entries placed on invoices (e.g. 0.6)
	FinalizedRatio float64 // share of invoices finalized
	CancelledRatio float64 // share of finalized invoices later cancelled
	MaxAgeDays     int     // entries are dated within this many days before Now
	Now            time.Time
	RandSeed       int64 // random seed for reproducibility
}

// DefaultLargeConfig returns configuration for a 10K entry dataset
func DefaultLargeConfig() DataConfig {
	return DataConfig{
		Customers:      25,
		Projects:       100,
		Entries:        10000,
		EntriesPerBill: 20,
		BilledRatio:    0.6,
		FinalizedRatio: 0.7,
		CancelledRatio: 0.1,
		MaxAgeDays:     730,
		Now:            time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
		RandSeed:       42,
	}
}

// DefaultXLargeConfig returns configuration for a 20K entry dataset
func DefaultXLargeConfig() DataConfig {
	cfg := DefaultLargeConfig()
	cfg.Customers = 50
	cfg.Projects = 200
	cfg.Entries = 20000
	cfg.RandSeed = 43
	return cfg
}

// Summary counts what a generator created
type Summary struct {
	Customers int
	Projects  int
	Entries   int
	Invoices  int
	Finalized int
	Cancelled int
}

// LargeSQLite fills store with a 10K entry dataset
func LargeSQLite(ctx context.Context, store storage.Storage) error {
	_, err := Generate(ctx, store, DefaultLargeConfig())
	return err
}

// XLargeSQLite fills store with a 20K entry dataset
func XLargeSQLite(ctx context.Context, store storage.Storage) error {
	_, err := Generate(ctx, store, DefaultXLargeConfig())
	return err
}

// Generate creates customers, projects, entries and invoices in every
// lifecycle state through the public store operations, so the data obeys
// the same rules as real usage.
func Generate(ctx context.Context, store storage.Storage, cfg DataConfig) (*Summary, error) {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.EntriesPerBill <= 0 {
		cfg.EntriesPerBill = 10
	}
	rng := rand.New(rand.NewSource(cfg.RandSeed)) // #nosec G404 - deterministic test data
	sum := &Summary{}

	customers := make([]int64, 0, cfg.Customers)
	for i := 0; i < cfg.Customers; i++ {
		c := &types.Customer{
			Name:  fmt.Sprintf("%s %d", customerNames[i%len(customerNames)], i),
			Email: fmt.Sprintf("billing%d@example.com", i),
		}
		if err := store.CreateCustomer(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		customers = append(customers, c.ID)
		sum.Customers++
	}

	projects := make([]int64, 0, cfg.Projects)
	for i := 0; i < cfg.Projects; i++ {
		p := &types.Project{
			Name:   fmt.Sprintf("%s %d", projectNames[i%len(projectNames)], i),
			Status: randomProjectStatus(rng),
		}
		if r := rates[rng.Intn(len(rates))]; r > 0 {
			p.HourlyRate = decimal.NewNullDecimal(decimal.NewFromInt(r))
		}
		if len(customers) > 0 {
			cid := customers[rng.Intn(len(customers))]
			p.CustomerID = &cid
		}
		if err := store.CreateProject(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
		projects = append(projects, p.ID)
		sum.Projects++
	}
	if len(projects) == 0 {
		return sum, nil
	}

	entries := make([]int64, 0, cfg.Entries)
	lastPctLogged := -1
	for i := 0; i < cfg.Entries; i++ {
		e := &types.TimeEntry{
			ProjectID:   projects[rng.Intn(len(projects))],
			Date:        cfg.Now.AddDate(0, 0, -rng.Intn(cfg.MaxAgeDays+1)).Format(types.DateLayout),
			Description: descriptions[rng.Intn(len(descriptions))],
		}
		if rng.Intn(2) == 0 {
			start := 8*60 + rng.Intn(8)*30
			end := start + 15*(1+rng.Intn(16))
			e.StartTime = clock(start)
			e.EndTime = clock(end)
		} else {
			e.DurationMinutes = 15 * (1 + rng.Intn(32))
		}
		if err := store.CreateTimeEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to create time entry: %w", err)
		}
		entries = append(entries, e.ID)
		sum.Entries++

		if pct := (i + 1) * 100 / cfg.Entries; pct >= lastPctLogged+10 {
			debug.Logf("fixtures: %d%% (%d/%d entries)", pct, i+1, cfg.Entries)
			lastPctLogged = pct
		}
	}

	rng.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	billed := entries[:int(float64(len(entries))*cfg.BilledRatio)]
	for len(billed) > 0 {
		n := cfg.EntriesPerBill
		if n > len(billed) {
			n = len(billed)
		}
		batch := billed[:n]
		billed = billed[n:]

		in := &types.InvoiceInput{EntryIDs: batch}
		if rng.Intn(4) == 0 {
			in.TaxRate = decimal.NewFromInt(19)
		} else {
			in.IsSmallBusiness = true
		}
		inv, err := store.CreateInvoice(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to create invoice: %w", err)
		}
		sum.Invoices++

		if rng.Float64() >= cfg.FinalizedRatio {
			continue
		}
		if _, err := store.FinalizeInvoice(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("failed to finalize invoice %s: %w", inv.InvoiceNumber, err)
		}
		sum.Finalized++

		if rng.Float64() >= cfg.CancelledRatio {
			continue
		}
		if _, err := store.CancelInvoice(ctx, inv.ID, "issued to wrong customer"); err != nil {
			return nil, fmt.Errorf("failed to cancel invoice %s: %w", inv.InvoiceNumber, err)
		}
		sum.Cancelled++
	}
	return sum, nil
}

func clock(minutes int) string {
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func randomProjectStatus(rng *rand.Rand) types.ProjectStatus {
	switch r := rng.Float64(); {
	case r < 0.7:
		return types.ProjectActive
	case r < 0.85:
		return types.ProjectPaused
	default:
		return types.ProjectCompleted
	}
}
