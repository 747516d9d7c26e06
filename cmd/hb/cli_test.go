package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/types"
)

// rootCmd, cobra flag state and the package globals are not safe for concurrent use
var inProcessMutex sync.Mutex

// createTempDirWithCleanup creates a temp directory with non-fatal cleanup.
// SQLite may hold the files briefly after close.
func createTempDirWithCleanup(t *testing.T) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "hb-cli-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		for i := 0; i < 5; i++ {
			if err := os.RemoveAll(tmpDir); err == nil {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
		t.Logf("Warning: Failed to clean up temp dir %s", tmpDir)
	})
	return tmpDir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runHB runs hb in-process inside dir and returns stdout
func runHB(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	inProcessMutex.Lock()
	defer inProcessMutex.Unlock()

	t.Setenv("HOURBOOK_DIR", "")
	t.Setenv("HOURBOOK_DB", "")

	oldDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to chdir to %s: %v", dir, err)
	}
	defer func() { _ = os.Chdir(oldDir) }()

	var out bytes.Buffer
	oldStdout := stdout
	stdout = &out
	defer func() { stdout = oldStdout }()

	if len(args) > 0 && args[0] != "init" {
		args = append([]string{"--no-daemon"}, args...)
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	closeExecutor()
	dbPath = ""
	actor = ""
	jsonOutput = false
	noDaemon = false
	daemonStatus = DaemonStatus{}
	resetFlags(rootCmd)
	rootCmd.SetArgs(nil)

	return out.String(), err
}

func mustRunHB(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runHB(t, dir, args...)
	if err != nil {
		t.Fatalf("hb %v failed: %v\nStdout: %s", args, err, out)
	}
	return out
}

func runJSON(t *testing.T, dir string, out interface{}, args ...string) {
	t.Helper()
	raw := mustRunHB(t, dir, append(args, "--json")...)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		t.Fatalf("Failed to parse JSON from hb %v: %v\nOutput: %s", args, err, raw)
	}
}

// setupCLITestDB creates an initialized workspace
func setupCLITestDB(t *testing.T) string {
	t.Helper()
	dir := createTempDirWithCleanup(t)
	mustRunHB(t, dir, "init", "--quiet")
	return dir
}

func TestCLI_Init(t *testing.T) {
	dir := createTempDirWithCleanup(t)
	var result map[string]interface{}
	runJSON(t, dir, &result, "init")

	dbFile := filepath.Join(dir, ".hourbook", "hourbook.db")
	if _, err := os.Stat(dbFile); err != nil {
		t.Fatalf("database not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".hourbook", "metadata.json")); err != nil {
		t.Fatalf("metadata.json not created: %v", err)
	}
	if v, _ := result["schema_version"].(float64); v == 0 {
		t.Errorf("schema_version = %v", result["schema_version"])
	}

	// init is idempotent
	mustRunHB(t, dir, "init", "--quiet")
}

func TestCLI_NoDatabase(t *testing.T) {
	dir := createTempDirWithCleanup(t)
	_, err := runHB(t, dir, "project", "list")
	if err == nil || !strings.Contains(err.Error(), "hb init") {
		t.Fatalf("expected a hint to run hb init, got %v", err)
	}
}

func TestCLI_InvoiceLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow CLI test in short mode")
	}
	dir := setupCLITestDB(t)

	var p types.Project
	runJSON(t, dir, &p, "project", "create", "Acme", "Website", "--rate", "100")
	if p.Name != "Acme Website" || !p.HourlyRate.Valid {
		t.Fatalf("unexpected project: %+v", p)
	}
	pid := fmt.Sprint(p.ID)

	var e1, e2 types.TimeEntryWithProject
	runJSON(t, dir, &e1, "entry", "add", pid, "--date", "2025-01-05", "--duration", "1h30m", "kickoff")
	runJSON(t, dir, &e2, "entry", "add", pid, "--date", "2025-01-10", "--start", "09:00", "--end", "09:30")
	if e1.DurationMinutes != 90 || e2.DurationMinutes != 30 {
		t.Fatalf("durations = %d, %d", e1.DurationMinutes, e2.DurationMinutes)
	}
	if e1.BillingStatus != types.BillingUnbilled {
		t.Errorf("new entry billing status = %s", e1.BillingStatus)
	}

	var inv types.InvoiceWithEntries
	runJSON(t, dir, &inv, "invoice", "create", fmt.Sprint(e1.ID), fmt.Sprint(e2.ID))
	if got := inv.TotalAmount.StringFixed(2); got != "200.00" {
		t.Errorf("total = %s, want 200.00", got)
	}
	if inv.ServicePeriodStart != "2025-01-05" || inv.ServicePeriodEnd != "2025-01-10" {
		t.Errorf("service period = %s..%s", inv.ServicePeriodStart, inv.ServicePeriodEnd)
	}
	invID := fmt.Sprint(inv.ID)

	var total rpc.TotalResponse
	runJSON(t, dir, &total, "invoice", "total", invID)
	if total.Total != "200.00" {
		t.Errorf("computed total = %s", total.Total)
	}

	// Draft edits re-price the invoice
	mustRunHB(t, dir, "entry", "update", fmt.Sprint(e2.ID), "--end", "10:00")
	var shown types.InvoiceWithEntries
	runJSON(t, dir, &shown, "invoice", "show", inv.InvoiceNumber)
	if got := shown.TotalAmount.StringFixed(2); got != "250.00" {
		t.Errorf("total after edit = %s, want 250.00", got)
	}

	mustRunHB(t, dir, "invoice", "finalize", invID)

	_, err := runHB(t, dir, "entry", "update", fmt.Sprint(e1.ID), "--duration", "10")
	if err == nil {
		t.Fatal("expected locked entry to reject edits")
	}
	if !strings.Contains(err.Error(), "Hint: cancel the invoice") {
		t.Errorf("expected cancel hint, got: %v", err)
	}

	_, err = runHB(t, dir, "invoice", "cancel", invID)
	var re *rpc.RemoteError
	if !errors.As(err, &re) || re.Reason != "empty_cancellation_reason" {
		t.Errorf("expected empty_cancellation_reason, got %v", err)
	}

	var cancelled types.Invoice
	runJSON(t, dir, &cancelled, "invoice", "cancel", invID, "--reason", "wrong customer")
	if cancelled.Status != types.InvoiceCancelled || cancelled.TotalAmount.StringFixed(2) != "250.00" {
		t.Errorf("cancelled invoice = %s total %s", cancelled.Status, cancelled.TotalAmount)
	}

	var listed []*types.Invoice
	runJSON(t, dir, &listed, "invoice", "list", "--status", "cancelled")
	if len(listed) != 1 || listed[0].ID != inv.ID {
		t.Errorf("cancelled list = %+v", listed)
	}
}

func TestCLI_InvoiceFromUnbilled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow CLI test in short mode")
	}
	dir := setupCLITestDB(t)

	var a, b types.Project
	runJSON(t, dir, &a, "project", "create", "Alpha", "--rate", "60")
	runJSON(t, dir, &b, "project", "create", "Beta", "--rate", "90")
	mustRunHB(t, dir, "entry", "add", fmt.Sprint(a.ID), "--date", "2025-03-01", "--duration", "60")
	mustRunHB(t, dir, "entry", "add", fmt.Sprint(a.ID), "--date", "2025-03-02", "--duration", "30")
	mustRunHB(t, dir, "entry", "add", fmt.Sprint(b.ID), "--date", "2025-03-03", "--duration", "60")

	var inv types.InvoiceWithEntries
	runJSON(t, dir, &inv, "invoice", "create", "--unbilled", "--project", fmt.Sprint(a.ID), "--tax-rate", "19")
	if len(inv.Entries) != 2 {
		t.Fatalf("attached %d entries, want 2", len(inv.Entries))
	}
	if got := inv.TotalAmount.StringFixed(2); got != "90.00" {
		t.Errorf("total = %s, want 90.00", got)
	}
	if got := inv.TaxAmount.StringFixed(2); got != "17.10" {
		t.Errorf("tax = %s, want 17.10", got)
	}

	var unbilled []*types.TimeEntryWithProject
	runJSON(t, dir, &unbilled, "entry", "unbilled")
	if len(unbilled) != 1 || unbilled[0].ProjectID != b.ID {
		t.Errorf("unbilled = %+v", unbilled)
	}

	// Rate changes re-price drafts
	mustRunHB(t, dir, "project", "update", fmt.Sprint(a.ID), "--rate", "120")
	var shown types.InvoiceWithEntries
	runJSON(t, dir, &shown, "invoice", "show", fmt.Sprint(inv.ID))
	if got := shown.TotalAmount.StringFixed(2); got != "180.00" {
		t.Errorf("total after rate change = %s, want 180.00", got)
	}

	// Releasing entries returns them to unbilled
	ids := []string{"remove"}
	for _, e := range shown.Entries {
		ids = append(ids, fmt.Sprint(e.ID))
	}
	mustRunHB(t, dir, append([]string{"invoice"}, ids...)...)
	runJSON(t, dir, &unbilled, "entry", "unbilled")
	if len(unbilled) != 3 {
		t.Errorf("unbilled after remove = %d, want 3", len(unbilled))
	}

	var next rpc.NextNumberResponse
	runJSON(t, dir, &next, "invoice", "next-number")
	if next.InvoiceNumber == "" || next.InvoiceNumber == inv.InvoiceNumber {
		t.Errorf("next number = %q (existing %q)", next.InvoiceNumber, inv.InvoiceNumber)
	}
}

func TestCLI_EntryDeleteRange(t *testing.T) {
	dir := setupCLITestDB(t)
	var p types.Project
	runJSON(t, dir, &p, "project", "create", "Gamma")
	for i := 0; i < 4; i++ {
		mustRunHB(t, dir, "entry", "add", fmt.Sprint(p.ID), "--duration", "15")
	}

	mustRunHB(t, dir, "entry", "delete", "1-3")

	var left []*types.TimeEntryWithProject
	runJSON(t, dir, &left, "entry", "list", "--project", fmt.Sprint(p.ID))
	if len(left) != 1 || left[0].ID != 4 {
		t.Errorf("remaining entries = %+v", left)
	}

	if _, err := runHB(t, dir, "project", "delete", fmt.Sprint(p.ID)); err == nil {
		t.Error("expected project with entries to be protected")
	}
}

func TestCLI_CustomersAndSettings(t *testing.T) {
	dir := setupCLITestDB(t)

	var c types.Customer
	runJSON(t, dir, &c, "customer", "create", "Initech", "--email", "billing@initech.example")
	var p types.Project
	runJSON(t, dir, &p, "project", "create", "TPS", "--customer", fmt.Sprint(c.ID))
	if p.CustomerID == nil || *p.CustomerID != c.ID {
		t.Fatalf("project customer = %v", p.CustomerID)
	}

	mustRunHB(t, dir, "customer", "delete", fmt.Sprint(c.ID))
	var projects []*types.Project
	runJSON(t, dir, &projects, "project", "list")
	if len(projects) != 1 || projects[0].CustomerID != nil {
		t.Errorf("customer not unlinked: %+v", projects)
	}

	mustRunHB(t, dir, "settings", "set", "company_name", "Hourbook GmbH")
	var setting rpc.SettingArgs
	runJSON(t, dir, &setting, "settings", "get", "company_name")
	if setting.Value != "Hourbook GmbH" {
		t.Errorf("setting = %q", setting.Value)
	}
	all := map[string]string{}
	runJSON(t, dir, &all, "settings", "list")
	if all["company_name"] != "Hourbook GmbH" {
		t.Errorf("settings list = %v", all)
	}
}

func TestCLI_Migrate(t *testing.T) {
	dir := setupCLITestDB(t)

	var plan sqlite.MigrationPlan
	runJSON(t, dir, &plan, "migrate", "--status")
	if len(plan.Pending) != 0 || plan.LedgerVersion != plan.LatestVersion {
		t.Errorf("fresh database plan = %+v", plan)
	}

	var result map[string]interface{}
	runJSON(t, dir, &result, "migrate")
	if result["status"] != "current" {
		t.Errorf("migrate status = %v", result["status"])
	}
}

func TestCLI_Doctor(t *testing.T) {
	dir := setupCLITestDB(t)
	var p types.Project
	runJSON(t, dir, &p, "project", "create", "Delta", "--rate", "50")
	mustRunHB(t, dir, "entry", "add", fmt.Sprint(p.ID), "--duration", "60")
	mustRunHB(t, dir, "invoice", "create", "1")

	var result doctorResult
	runJSON(t, dir, &result, "doctor")
	if !result.OverallOK {
		t.Fatalf("doctor reported problems: %+v", result.Checks)
	}
	statuses := map[string]string{}
	for _, c := range result.Checks {
		statuses[c.Name] = c.Status
	}
	want := map[string]string{
		"Database":       statusOK,
		"Schema Version": statusOK,
		"Schema":         statusOK,
		"Billing":        statusOK,
		"Backups":        statusWarning,
		"Daemon":         statusOK,
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("doctor checks mismatch (-want +got):\n%s", diff)
	}
}

func TestCLI_Backup(t *testing.T) {
	dir := setupCLITestDB(t)
	backups := filepath.Join(dir, "snapshots")

	for i := 0; i < 3; i++ {
		var result sqlite.BackupResult
		runJSON(t, dir, &result, "backup", "--dir", backups, "--keep", "2")
		if _, err := os.Stat(result.Path); err != nil {
			t.Fatalf("backup file missing: %v", err)
		}
	}

	var listed []string
	runJSON(t, dir, &listed, "backup", "--dir", backups, "--list")
	if len(listed) != 2 {
		t.Errorf("kept %d backups, want 2: %v", len(listed), listed)
	}

	var setting rpc.SettingArgs
	runJSON(t, dir, &setting, "settings", "get", sqlite.LastBackupSetting)
	if _, err := time.Parse(time.RFC3339, setting.Value); err != nil {
		t.Errorf("last_backup_at = %q: %v", setting.Value, err)
	}
}

func TestCLI_ConfigShow(t *testing.T) {
	dir := createTempDirWithCleanup(t)
	out := mustRunHB(t, dir, "config", "show")
	for _, want := range []string{"backup:", "interval:", "keep: 24"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	dir := createTempDirWithCleanup(t)
	var v map[string]string
	runJSON(t, dir, &v, "version")
	if v["version"] != Version {
		t.Errorf("version = %q, want %q", v["version"], Version)
	}
}
