package rpc

import (
	"context"
	"strings"
	"testing"
	"time"
)

const testVersion100 = "1.0.0"

func TestVersionCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		clientVersion string
		shouldWork    bool
		errorContains string
	}{
		{"Exact version match", testVersion100, testVersion100, true, ""},
		{"Client older, same major version", "1.2.0", "1.1.0", true, ""},
		{"Client newer minor", "1.1.0", "1.2.0", false, "daemon upgrade"},
		{"Client newer patch", "1.1.0", "1.1.4", false, "older than client"},
		{"Different major versions - client newer", testVersion100, "2.0.0", false, "incompatible major versions"},
		{"Different major versions - daemon newer", "2.0.0", testVersion100, false, "incompatible major versions"},
		{"Empty client version", testVersion100, "", true, ""},
		{"Dev builds", "dev-build", "local-test", true, ""},
		{"Version with v prefix", "v1.0.0", testVersion100, true, ""},
		{"Patch version differences", "1.0.5", "1.0.3", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := ServerVersion
			ServerVersion = tt.serverVersion
			defer func() { ServerVersion = original }()

			err := (&Server{}).checkVersionCompatibility(tt.clientVersion)
			if tt.shouldWork {
				if err != nil {
					t.Errorf("Expected compatible, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected version mismatch error")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain %q, got: %s", tt.errorContains, err)
			}
		})
	}
}

func TestVersionGateOverSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket test in short mode")
	}
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	origServer, origClient := ServerVersion, ClientVersion
	defer func() { ServerVersion, ClientVersion = origServer, origClient }()
	ServerVersion = "1.1.0"
	ClientVersion = "1.2.0"

	_, err := client.Execute(OpListProjects, nil)
	if err == nil || !strings.Contains(err.Error(), "daemon upgrade") {
		t.Fatalf("Expected version mismatch, got %v", err)
	}
	if re := remoteError(t, err); re.Code != CodeValidation {
		t.Errorf("code = %s, want validation", re.Code)
	}
}

func TestHealthCheckIncludesVersionInfo(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	origServer, origClient := ServerVersion, ClientVersion
	defer func() { ServerVersion, ClientVersion = origServer, origClient }()
	ServerVersion = testVersion100
	ClientVersion = testVersion100

	health, err := client.Health()
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if health.Version != testVersion100 {
		t.Errorf("Expected version %s, got %s", testVersion100, health.Version)
	}
	if health.ClientVersion != testVersion100 {
		t.Errorf("Expected client version %s, got %s", testVersion100, health.ClientVersion)
	}
	if !health.Compatible {
		t.Error("Expected compatible to be true")
	}
	if health.Status != "healthy" && health.Status != "degraded" {
		t.Errorf("Status = %s", health.Status)
	}
	if health.SchemaVersion == 0 {
		t.Error("Expected a non-zero schema version")
	}
}

func TestPingAndHealthBypassVersionCheck(t *testing.T) {
	ex := newLocal(t)

	origServer, origClient := ServerVersion, ClientVersion
	defer func() { ServerVersion, ClientVersion = origServer, origClient }()
	ServerVersion = testVersion100
	ClientVersion = "2.0.0"

	var ping PingResponse
	if err := Decode(ex, OpPing, nil, &ping); err != nil {
		t.Fatalf("Ping should bypass version check: %v", err)
	}
	if ping.Version != testVersion100 {
		t.Errorf("ping version = %s", ping.Version)
	}

	var health HealthResponse
	if err := Decode(ex, OpHealth, nil, &health); err != nil {
		t.Fatalf("Health should bypass version check: %v", err)
	}
	if health.Compatible {
		t.Error("Expected compatible=false for a major version mismatch")
	}

	if _, err := ex.Execute(OpListInvoices, nil); err == nil {
		t.Error("Expected list_invoices to be rejected")
	}
}

func TestMetricsOperation(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if _, err := client.Execute(OpListProjects, nil); err != nil {
			t.Fatalf("list_projects failed: %v", err)
		}
	}
	_, _ = client.Execute(OpShowInvoice, &ShowInvoiceArgs{ID: 42})

	metrics, err := client.Metrics()
	if err != nil {
		t.Fatalf("Metrics call failed: %v", err)
	}
	counts := map[string]OperationMetrics{}
	for _, om := range metrics.Operations {
		counts[om.Operation] = om
	}
	if got := counts[OpListProjects].Count; got != 3 {
		t.Errorf("list_projects count = %d, want 3", got)
	}
	if got := counts[OpShowInvoice].Errors; got != 1 {
		t.Errorf("show_invoice errors = %d, want 1", got)
	}
	if metrics.TotalErrors < 1 {
		t.Errorf("total errors = %d", metrics.TotalErrors)
	}
}

func TestHandleRecordsLastActivity(t *testing.T) {
	ex := newLocal(t)
	before, _ := ex.server.lastActivityTime.Load().(time.Time)
	resp := ex.server.Handle(context.Background(), &Request{Operation: OpListCustomers})
	if !resp.Success {
		t.Fatalf("list_customers failed: %s", resp.Error)
	}
	after, _ := ex.server.lastActivityTime.Load().(time.Time)
	if after.Before(before) {
		t.Error("last activity time moved backwards")
	}
}
