package rpc

import (
	"context"
	"fmt"

	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/types"
)

// migrationReporter is implemented by stores that keep a migration ledger
type migrationReporter interface {
	MigrationStatus(ctx context.Context) (*sqlite.MigrationStatus, error)
}

// backupper is implemented by file-backed stores
type backupper interface {
	Backup(ctx context.Context, dir string, keep int) (*sqlite.BackupResult, error)
}

// Projects

func (s *Server) handleCreateProject(ctx context.Context, req *Request) Response {
	var p types.Project
	if err := decodeArgs(req, &p); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.CreateProject(ctx, &p); err != nil {
		return errorResponse(err)
	}
	return dataResponse(&p)
}

func (s *Server) handleListProjects(ctx context.Context, req *Request) Response {
	var args ListProjectsArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	projects, err := s.storage.ListProjects(ctx, args.Status)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(projects)
}

func (s *Server) handleUpdateProject(ctx context.Context, req *Request) Response {
	var args UpdateProjectArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	p, err := s.storage.UpdateProject(ctx, args.ID, &args.ProjectUpdate)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(p)
}

func (s *Server) handleDeleteProject(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.DeleteProject(ctx, args.ID); err != nil {
		return errorResponse(err)
	}
	return dataResponse(args)
}

// Customers

func (s *Server) handleCreateCustomer(ctx context.Context, req *Request) Response {
	var c types.Customer
	if err := decodeArgs(req, &c); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.CreateCustomer(ctx, &c); err != nil {
		return errorResponse(err)
	}
	return dataResponse(&c)
}

func (s *Server) handleListCustomers(ctx context.Context, _ *Request) Response {
	customers, err := s.storage.ListCustomers(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(customers)
}

func (s *Server) handleDeleteCustomer(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.DeleteCustomer(ctx, args.ID); err != nil {
		return errorResponse(err)
	}
	return dataResponse(args)
}

// Time entries

func (s *Server) handleCreateEntry(ctx context.Context, req *Request) Response {
	var e types.TimeEntry
	if err := decodeArgs(req, &e); err != nil {
		return errorResponse(err)
	}
	// Billing fields belong to invoice operations
	e.InvoiceID = nil
	e.BillingStatus = ""
	if err := s.storage.CreateTimeEntry(ctx, &e); err != nil {
		return errorResponse(err)
	}
	created, err := s.storage.GetTimeEntry(ctx, e.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(created)
}

func (s *Server) handleShowEntry(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	e, err := s.storage.GetTimeEntry(ctx, args.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(e)
}

func (s *Server) handleListEntries(ctx context.Context, req *Request) Response {
	var args ListEntriesArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	entries, err := s.storage.ListTimeEntries(ctx, types.TimeEntryFilter{
		ProjectID:     args.ProjectID,
		From:          args.From,
		To:            args.To,
		BillingStatus: args.BillingStatus,
		Limit:         args.Limit,
	})
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(entries)
}

func (s *Server) handleUpdateEntry(ctx context.Context, req *Request) Response {
	var args UpdateEntryArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	result, err := s.storage.UpdateTimeEntry(ctx, args.ID, &args.TimeEntryUpdate)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(result)
}

func (s *Server) handleDeleteEntry(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	result, err := s.storage.DeleteTimeEntry(ctx, args.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(result)
}

func (s *Server) handleUnbilled(ctx context.Context, _ *Request) Response {
	entries, err := s.storage.GetUnbilledTimeEntries(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(entries)
}

// Invoices

func (s *Server) handleCreateInvoice(ctx context.Context, req *Request) Response {
	var in types.InvoiceInput
	if err := decodeArgs(req, &in); err != nil {
		return errorResponse(err)
	}
	inv, err := s.storage.CreateInvoice(ctx, &in)
	if err != nil {
		return errorResponse(err)
	}
	full, err := s.storage.GetInvoiceWithEntries(ctx, inv.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(full)
}

func (s *Server) handleUpdateInvoice(ctx context.Context, req *Request) Response {
	var args UpdateInvoiceArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	inv, err := s.storage.UpdateInvoice(ctx, args.ID, &args.InvoiceUpdate)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(inv)
}

func (s *Server) handleDeleteInvoice(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.DeleteInvoice(ctx, args.ID); err != nil {
		return errorResponse(err)
	}
	return dataResponse(args)
}

func (s *Server) handleFinalizeInvoice(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	inv, err := s.storage.FinalizeInvoice(ctx, args.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(inv)
}

func (s *Server) handleCancelInvoice(ctx context.Context, req *Request) Response {
	var args CancelInvoiceArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	inv, err := s.storage.CancelInvoice(ctx, args.ID, args.Reason)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(inv)
}

func (s *Server) handleAddEntries(ctx context.Context, req *Request) Response {
	var args AddEntriesArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	full, err := s.storage.AddTimeEntriesToInvoice(ctx, args.InvoiceID, args.EntryIDs)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(full)
}

func (s *Server) handleRemoveEntries(ctx context.Context, req *Request) Response {
	var args RemoveEntriesArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	if err := s.storage.RemoveTimeEntriesFromInvoice(ctx, args.EntryIDs); err != nil {
		return errorResponse(err)
	}
	return dataResponse(args)
}

func (s *Server) handleNextInvoiceNumber(ctx context.Context, _ *Request) Response {
	number, err := s.storage.GenerateNextInvoiceNumber(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(NextNumberResponse{InvoiceNumber: number})
}

func (s *Server) handleShowInvoice(ctx context.Context, req *Request) Response {
	var args ShowInvoiceArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	id := args.ID
	if args.Number != "" {
		inv, err := s.storage.GetInvoiceByNumber(ctx, args.Number)
		if err != nil {
			return errorResponse(err)
		}
		id = inv.ID
	}
	if id == 0 {
		return errorResponse(fmt.Errorf("invoice id or number: %w", types.ErrMissingField))
	}
	full, err := s.storage.GetInvoiceWithEntries(ctx, id)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(full)
}

func (s *Server) handleListInvoices(ctx context.Context, req *Request) Response {
	var args ListInvoicesArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	invoices, err := s.storage.ListInvoices(ctx, types.InvoiceFilter{
		Status: args.Status,
		Type:   args.Type,
		Limit:  args.Limit,
	})
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(invoices)
}

func (s *Server) handleComputeTotal(ctx context.Context, req *Request) Response {
	var args IDArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	total, err := s.storage.ComputeInvoiceTotal(ctx, args.ID)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(TotalResponse{InvoiceID: args.ID, Total: total.StringFixed(2)})
}

// Maintenance

func (s *Server) handleMigrationStatus(ctx context.Context, _ *Request) Response {
	reporter, ok := s.storage.(migrationReporter)
	if !ok {
		return Response{Success: false, Error: "storage backend has no migration ledger", Code: CodeValidation}
	}
	status, err := reporter.MigrationStatus(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(status)
}

func (s *Server) handleBackup(ctx context.Context, req *Request) Response {
	var args BackupArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	b, ok := s.storage.(backupper)
	if !ok {
		return Response{Success: false, Error: "storage backend does not support backups", Code: CodeValidation}
	}
	result, err := b.Backup(ctx, args.Dir, args.Keep)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(result)
}

func (s *Server) handleGetSetting(ctx context.Context, req *Request) Response {
	var args SettingArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	value, err := s.storage.GetSetting(ctx, args.Key)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(SettingArgs{Key: args.Key, Value: value})
}

func (s *Server) handleSetSetting(ctx context.Context, req *Request) Response {
	var args SettingArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResponse(err)
	}
	if args.Key == "" {
		return errorResponse(fmt.Errorf("setting key: %w", types.ErrMissingField))
	}
	if err := s.storage.SetSetting(ctx, args.Key, args.Value); err != nil {
		return errorResponse(err)
	}
	return dataResponse(args)
}

func (s *Server) handleListSettings(ctx context.Context, _ *Request) Response {
	settings, err := s.storage.GetAllSettings(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return dataResponse(settings)
}
