package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/billing"
	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/workspace"
)

// Status constants for doctor checks
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

type doctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // statusOK, statusWarning, or statusError
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Fix     string `json:"fix,omitempty"`
}

type doctorResult struct {
	Path       string            `json:"path"`
	Checks     []doctorCheck     `json:"checks"`
	Findings   []billing.Finding `json:"findings,omitempty"`
	OverallOK  bool              `json:"overall_ok"`
	CLIVersion string            `json:"cli_version"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database health and billing consistency",
	Long: `Sanity check the hourbook workspace.

This command checks:
  - The database can be found
  - Schema version and pending migrations (read-only)
  - Schema compatibility (all required tables and columns present)
  - Billing consistency between invoices and time entries
  - Age of the most recent backup
  - Daemon health and version compatibility

Pending migrations are reported but not applied; run 'hb migrate'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result := runDiagnostics(context.Background())
		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			printDiagnostics(result)
		}
		if !result.OverallOK {
			return errors.New("doctor found problems")
		}
		return nil
	},
}

func runDiagnostics(ctx context.Context) doctorResult {
	result := doctorResult{CLIVersion: Version, OverallOK: true}
	add := func(c doctorCheck) {
		if c.Status == statusError {
			result.OverallOK = false
		}
		result.Checks = append(result.Checks, c)
	}

	if err := resolveDBPath(); err != nil {
		add(doctorCheck{
			Name:    "Database",
			Status:  statusError,
			Message: "No database found",
			Fix:     "Run 'hb init'",
		})
		return result
	}
	result.Path = dbPath
	add(doctorCheck{Name: "Database", Status: statusOK, Message: dbPath})

	plan, check := checkMigrations(ctx)
	add(check)
	if plan == nil || len(plan.Pending) > 0 {
		// Opening the store would migrate it
		add(checkDaemon())
		return result
	}

	s, err := sqlite.New(dbPath)
	if err != nil {
		add(doctorCheck{Name: "Schema", Status: statusError, Message: "Unable to open database", Detail: err.Error()})
		return result
	}
	defer func() { _ = s.Close() }()

	add(checkSchema(ctx, s))
	findingsCheck, findings := checkBilling(ctx, s)
	result.Findings = findings
	add(findingsCheck)
	add(checkBackups(ctx, s))
	add(checkDaemon())
	return result
}

func checkMigrations(ctx context.Context) (*sqlite.MigrationPlan, doctorCheck) {
	check := doctorCheck{Name: "Schema Version"}
	plan, err := sqlite.InspectMigrations(ctx, dbPath)
	switch {
	case errors.Is(err, migrations.ErrUnknownSchemaVersion):
		check.Status = statusError
		check.Message = fmt.Sprintf("Database is at version %d, newer than this hb (%d)", plan.LedgerVersion, plan.LatestVersion)
		check.Fix = "Upgrade hb"
		return nil, check
	case err != nil:
		check.Status = statusError
		check.Message = "Unable to read migration ledger"
		check.Detail = err.Error()
		return nil, check
	case len(plan.Pending) > 0:
		names := make([]string, 0, len(plan.Pending))
		for _, m := range plan.Pending {
			names = append(names, fmt.Sprintf("%03d_%s", m.Version, m.Name))
		}
		check.Status = statusWarning
		check.Message = fmt.Sprintf("%d pending migration(s)", len(plan.Pending))
		check.Detail = strings.Join(names, ", ")
		check.Fix = "Run 'hb migrate'"
		return plan, check
	}
	check.Status = statusOK
	check.Message = fmt.Sprintf("%d (latest)", plan.LedgerVersion)
	return plan, check
}

func checkSchema(ctx context.Context, s *sqlite.SQLiteStorage) doctorCheck {
	probe := s.ProbeSchema(ctx)
	if probe.Compatible {
		return doctorCheck{Name: "Schema", Status: statusOK, Message: "All tables and columns present"}
	}
	return doctorCheck{
		Name:    "Schema",
		Status:  statusError,
		Message: "Schema is incomplete",
		Detail:  probe.ErrorMessage,
		Fix:     "Restore a backup with 'hb backup --list' and copy it over the database",
	}
}

func checkBilling(ctx context.Context, s *sqlite.SQLiteStorage) (doctorCheck, []billing.Finding) {
	check := doctorCheck{Name: "Billing"}
	invoices, err := s.ListInvoices(ctx, types.InvoiceFilter{})
	if err == nil {
		var entries []*types.TimeEntryWithProject
		entries, err = s.ListTimeEntries(ctx, types.TimeEntryFilter{})
		if err == nil {
			findings := billing.CheckConsistency(invoices, entries)
			if len(findings) == 0 {
				check.Status = statusOK
				check.Message = fmt.Sprintf("%d invoices, %d entries consistent", len(invoices), len(entries))
				return check, nil
			}
			check.Status = statusError
			check.Message = fmt.Sprintf("%d inconsistencies", len(findings))
			check.Detail = findings[0].Message
			check.Fix = "Run 'hb doctor --json' for the full list"
			return check, findings
		}
	}
	check.Status = statusError
	check.Message = "Unable to read invoices"
	check.Detail = err.Error()
	return check, nil
}

func checkBackups(ctx context.Context, s *sqlite.SQLiteStorage) doctorCheck {
	check := doctorCheck{Name: "Backups"}
	last, err := s.GetSetting(ctx, sqlite.LastBackupSetting)
	if err != nil {
		check.Status = statusWarning
		check.Message = "Unable to read last backup time"
		check.Detail = err.Error()
		return check
	}
	if last == "" {
		check.Status = statusWarning
		check.Message = "No backup recorded"
		check.Fix = "Run 'hb backup' or start 'hb daemon'"
		return check
	}
	taken, err := time.Parse(time.RFC3339, last)
	if err != nil {
		check.Status = statusWarning
		check.Message = fmt.Sprintf("Unreadable last backup time %q", last)
		return check
	}
	age := time.Since(taken).Round(time.Minute)
	check.Message = fmt.Sprintf("Last backup %s ago", age)
	check.Detail = workspace.BackupDir(dbPath)
	check.Status = statusOK
	if interval := config.GetDuration("backup.interval"); interval > 0 && age > 2*interval {
		check.Status = statusWarning
		check.Fix = "Run 'hb backup' or start 'hb daemon'"
	}
	return check
}

func checkDaemon() doctorCheck {
	check := doctorCheck{Name: "Daemon"}
	socketPath := workspace.SocketPath(dbPath)
	if _, err := os.Stat(socketPath); err != nil {
		check.Status = statusOK
		check.Message = "Not running (direct mode)"
		return check
	}
	rpc.ClientVersion = Version
	client, err := rpc.TryConnect(socketPath)
	if err != nil || client == nil {
		check.Status = statusWarning
		check.Message = "Stale socket, daemon not responding"
		check.Detail = socketPath
		check.Fix = "Remove the socket or restart with 'hb daemon'"
		return check
	}
	defer func() { _ = client.Close() }()
	client.SetDatabasePath(dbPath)

	health, err := client.Health()
	switch {
	case err != nil:
		check.Status = statusWarning
		check.Message = "Health check failed"
		check.Detail = err.Error()
	case !health.Compatible:
		check.Status = statusWarning
		check.Message = fmt.Sprintf("Version mismatch (daemon %s, client %s)", health.Version, Version)
		check.Fix = "Restart the daemon: 'hb daemon --stop' then 'hb daemon'"
	case health.Status != statusHealthy:
		check.Status = statusWarning
		check.Message = fmt.Sprintf("Daemon is %s", health.Status)
		check.Detail = health.Error
	default:
		check.Status = statusOK
		check.Message = fmt.Sprintf("Running %s, schema version %d", health.Version, health.SchemaVersion)
	}
	return check
}

func printDiagnostics(result doctorResult) {
	printf("\nDiagnostics\n")
	for i, check := range result.Checks {
		prefix := "├"
		if i == len(result.Checks)-1 {
			prefix = "└"
		}
		var statusIcon string
		switch check.Status {
		case statusWarning:
			statusIcon = color.YellowString(" ⚠")
		case statusError:
			statusIcon = color.RedString(" ✗")
		}
		printf(" %s %s: %s%s\n", prefix, check.Name, check.Message, statusIcon)
		if check.Detail != "" {
			detailPrefix := "│"
			if i == len(result.Checks)-1 {
				detailPrefix = " "
			}
			printf(" %s   %s\n", detailPrefix, color.New(color.Faint).Sprint(check.Detail))
		}
	}
	printf("\n")

	hasIssues := false
	for _, check := range result.Checks {
		if check.Status == statusOK || check.Fix == "" {
			continue
		}
		hasIssues = true
		switch check.Status {
		case statusWarning:
			printf("%s\n", color.YellowString("⚠ Warning: %s", check.Message))
		case statusError:
			printf("%s\n", color.RedString("✗ Error: %s", check.Message))
		}
		printf("  Fix: %s\n\n", check.Fix)
	}
	if !hasIssues {
		printf("%s\n", color.GreenString("✓ All checks passed"))
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
