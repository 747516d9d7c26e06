package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/mod/semver"

	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
)

const statusUnhealthy = "unhealthy"

// checkVersionCompatibility validates client version against server version
// Returns error if versions are incompatible
func (s *Server) checkVersionCompatibility(clientVersion string) error {
	// Allow empty client version (scripts talking to the socket directly)
	if clientVersion == "" {
		return nil
	}

	serverVer := ServerVersion
	if !strings.HasPrefix(serverVer, "v") {
		serverVer = "v" + serverVer
	}
	clientVer := clientVersion
	if !strings.HasPrefix(clientVer, "v") {
		clientVer = "v" + clientVer
	}

	// Dev builds carry no semver; let them through
	if !semver.IsValid(serverVer) || !semver.IsValid(clientVer) {
		return nil
	}

	if semver.Major(serverVer) != semver.Major(clientVer) {
		if semver.Compare(serverVer, clientVer) < 0 {
			return fmt.Errorf("incompatible major versions: client %s, daemon %s. Daemon is older; restart it: 'hb daemon --stop && hb daemon'",
				clientVersion, ServerVersion)
		}
		return fmt.Errorf("incompatible major versions: client %s, daemon %s. Client is older; upgrade the hb CLI to match the daemon's major version",
			clientVersion, ServerVersion)
	}

	// Daemon must not be older than the client: a newer client may expect migrations the daemon never ran
	if semver.Compare(serverVer, clientVer) < 0 {
		if semver.MajorMinor(serverVer) != semver.MajorMinor(clientVer) {
			return fmt.Errorf("version mismatch: client v%s requires daemon upgrade (daemon is v%s). Restart it: 'hb daemon --stop && hb daemon'",
				clientVersion, ServerVersion)
		}
		return fmt.Errorf("version mismatch: daemon v%s is older than client v%s. Restart it: 'hb daemon --stop && hb daemon'",
			ServerVersion, clientVersion)
	}
	return nil
}

// validateDatabaseBinding rejects requests meant for a different database
func (s *Server) validateDatabaseBinding(req *Request) error {
	if req.ExpectedDB == "" || s.dbPath == "" {
		return nil
	}

	expectedPath, err := filepath.EvalSymlinks(req.ExpectedDB)
	if err != nil {
		expectedPath = filepath.Clean(req.ExpectedDB)
	}
	daemonPath, err := filepath.EvalSymlinks(s.dbPath)
	if err != nil {
		daemonPath = filepath.Clean(s.dbPath)
	}
	if expectedPath != daemonPath {
		return fmt.Errorf("database mismatch: client expects %s but daemon serves %s. Wrong daemon connection - check socket path",
			req.ExpectedDB, s.dbPath)
	}
	return nil
}

// codeFor maps an error to a response code
func codeFor(err error) string {
	if kind := types.KindOf(err); kind != "" {
		return kind
	}
	var migErr *migrations.MigrationError
	if errors.As(err, &migErr) || errors.Is(err, migrations.ErrUnknownSchemaVersion) || errors.Is(err, sqlite.ErrSchemaIncompatible) {
		return CodeMigration
	}
	return CodeInternal
}

func errorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Code:    codeFor(err),
		Reason:  types.CodeOf(err),
	}
}

func dataResponse(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{Success: false, Error: fmt.Sprintf("failed to encode result: %v", err), Code: CodeInternal}
	}
	return Response{Success: true, Data: data}
}

func decodeArgs(req *Request, v any) error {
	if len(req.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("invalid %s args: %v: %w", req.Operation, err, types.ErrValidation)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req *Request) Response {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequest(req.Operation, time.Since(start))
	}()

	if req.Operation != OpHealth && req.Operation != OpMetrics {
		if err := s.validateDatabaseBinding(req); err != nil {
			s.metrics.RecordError(req.Operation)
			return Response{Success: false, Error: err.Error(), Code: CodeValidation}
		}
	}

	// ping/health stay reachable so clients can learn the daemon version
	if req.Operation != OpPing && req.Operation != OpHealth {
		if err := s.checkVersionCompatibility(req.ClientVersion); err != nil {
			s.metrics.RecordError(req.Operation)
			return Response{Success: false, Error: err.Error(), Code: CodeValidation}
		}
	}

	s.lastActivityTime.Store(time.Now())
	debug.Logf("rpc: %s actor=%s id=%s", req.Operation, s.reqActor(req), req.RequestID)

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	handler, ok := s.handlers()[req.Operation]
	if !ok {
		s.metrics.RecordError(req.Operation)
		return Response{Success: false, Error: fmt.Sprintf("unknown operation: %s", req.Operation), Code: CodeValidation}
	}

	resp := handler(ctx, req)
	if !resp.Success {
		s.metrics.RecordError(req.Operation)
	}
	return resp
}

type handlerFunc func(ctx context.Context, req *Request) Response

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		OpPing:     s.handlePing,
		OpStatus:   s.handleStatus,
		OpHealth:   s.handleHealth,
		OpMetrics:  s.handleMetrics,
		OpShutdown: s.handleShutdown,

		OpCreateProject: s.handleCreateProject,
		OpListProjects:  s.handleListProjects,
		OpUpdateProject: s.handleUpdateProject,
		OpDeleteProject: s.handleDeleteProject,

		OpCreateCustomer: s.handleCreateCustomer,
		OpListCustomers:  s.handleListCustomers,
		OpDeleteCustomer: s.handleDeleteCustomer,

		OpCreateEntry: s.handleCreateEntry,
		OpShowEntry:   s.handleShowEntry,
		OpListEntries: s.handleListEntries,
		OpUpdateEntry: s.handleUpdateEntry,
		OpDeleteEntry: s.handleDeleteEntry,
		OpUnbilled:    s.handleUnbilled,

		OpCreateInvoice:     s.handleCreateInvoice,
		OpUpdateInvoice:     s.handleUpdateInvoice,
		OpDeleteInvoice:     s.handleDeleteInvoice,
		OpFinalizeInvoice:   s.handleFinalizeInvoice,
		OpCancelInvoice:     s.handleCancelInvoice,
		OpAddEntries:        s.handleAddEntries,
		OpRemoveEntries:     s.handleRemoveEntries,
		OpNextInvoiceNumber: s.handleNextInvoiceNumber,
		OpShowInvoice:       s.handleShowInvoice,
		OpListInvoices:      s.handleListInvoices,
		OpComputeTotal:      s.handleComputeTotal,

		OpMigrationStatus: s.handleMigrationStatus,
		OpBackup:          s.handleBackup,
		OpGetSetting:      s.handleGetSetting,
		OpSetSetting:      s.handleSetSetting,
		OpListSettings:    s.handleListSettings,
	}
}

func (s *Server) reqActor(req *Request) string {
	if req != nil && req.Actor != "" {
		return req.Actor
	}
	return "daemon"
}

// Handler implementations

func (s *Server) handlePing(_ context.Context, _ *Request) Response {
	return dataResponse(PingResponse{Message: "pong", Version: ServerVersion})
}

func (s *Server) handleStatus(_ context.Context, _ *Request) Response {
	lastActivity, _ := s.lastActivityTime.Load().(time.Time)
	return dataResponse(StatusResponse{
		Version:          ServerVersion,
		WorkspacePath:    s.workspacePath,
		DatabasePath:     s.dbPath,
		SocketPath:       s.socketPath,
		PID:              os.Getpid(),
		UptimeSeconds:    time.Since(s.startTime).Seconds(),
		LastActivityTime: lastActivity.Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(ctx context.Context, req *Request) Response {
	start := time.Now()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	healthCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	status := "healthy"
	dbError := ""
	schemaVersion := 0

	var pingErr error
	if reporter, ok := s.storage.(migrationReporter); ok {
		var ms *sqlite.MigrationStatus
		if ms, pingErr = reporter.MigrationStatus(healthCtx); pingErr == nil {
			schemaVersion = ms.CurrentVersion
		}
	} else {
		pingErr = s.storage.UnderlyingDB().PingContext(healthCtx)
	}
	dbResponseMs := time.Since(start).Seconds() * 1000

	if pingErr != nil {
		status = statusUnhealthy
		dbError = pingErr.Error()
	} else if dbResponseMs > 500 {
		status = "degraded"
	}

	compatible := true
	if req.ClientVersion != "" {
		if err := s.checkVersionCompatibility(req.ClientVersion); err != nil {
			compatible = false
		}
	}

	resp := dataResponse(HealthResponse{
		Status:         status,
		Version:        ServerVersion,
		ClientVersion:  req.ClientVersion,
		Compatible:     compatible,
		Uptime:         time.Since(s.startTime).Seconds(),
		DBResponseTime: dbResponseMs,
		SchemaVersion:  schemaVersion,
		ActiveConns:    atomic.LoadInt32(&s.activeConns),
		MaxConns:       s.maxConns,
		MemoryAllocMB:  m.Alloc / 1024 / 1024,
		Error:          dbError,
	})
	if status == statusUnhealthy {
		resp.Success = false
		resp.Error = dbError
		resp.Code = CodeInternal
	}
	return resp
}

func (s *Server) handleMetrics(_ context.Context, _ *Request) Response {
	return dataResponse(s.metrics.Snapshot(int(atomic.LoadInt32(&s.activeConns))))
}

func (s *Server) handleShutdown(_ context.Context, _ *Request) Response {
	if s.socketPath == "" {
		return Response{Success: false, Error: "shutdown is only available on a daemon", Code: CodeValidation}
	}
	// Let the response reach the client before the listener goes away
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = s.Stop()
	}()
	return dataResponse(map[string]string{"message": "shutting down"})
}
