package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/billing"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
)

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanInvoice(row rowScanner) (*types.Invoice, error) {
	var inv types.Invoice
	var notes, reason, externalNumber, periodStart, periodEnd sql.NullString
	if err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.Status, &inv.TotalAmount, &notes,
		&reason, &inv.Type, &externalNumber, &inv.NetAmount, &inv.GrossAmount,
		&inv.TaxRate, &inv.IsSmallBusiness, &inv.TaxAmount,
		&periodStart, &periodEnd, &inv.ServicePeriodStartAuto, &inv.ServicePeriodEndAuto,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Notes = notes.String
	inv.CancellationReason = reason.String
	inv.ExternalInvoiceNumber = externalNumber.String
	inv.ServicePeriodStart = periodStart.String
	inv.ServicePeriodEnd = periodEnd.String
	return &inv, nil
}

func getInvoice(ctx context.Context, ex migrations.Executor, id int64) (*types.Invoice, error) {
	// #nosec G201 - column list is a constant
	inv, err := scanInvoice(ex.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE id = ?`, invoiceColumns), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %d: %w", id, types.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func linkedEntries(ctx context.Context, ex migrations.Executor, invoiceID int64) ([]*types.TimeEntryWithProject, error) {
	return queryEntries(ctx, ex, `WHERE e.invoice_id = ?`, invoiceID)
}

func invoiceNumberTaken(ctx context.Context, ex migrations.Executor, number string, exceptID int64) (bool, error) {
	var taken bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invoices WHERE invoice_number = ? AND id <> ?)`, number, exceptID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice number: %w", err)
	}
	return taken, nil
}

func nextInvoiceNumber(ctx context.Context, ex migrations.Executor, year int) (string, error) {
	rows, err := ex.QueryContext(ctx, `SELECT invoice_number FROM invoices WHERE invoice_number LIKE ?`, fmt.Sprintf("%04d-%%", year))
	if err != nil {
		return "", fmt.Errorf("failed to read invoice numbers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var existing []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", fmt.Errorf("failed to scan invoice number: %w", err)
		}
		existing = append(existing, n)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return billing.NextInvoiceNumber(existing, year), nil
}

// writeInvoice persists every mutable column of inv
func writeInvoice(ctx context.Context, ex migrations.Executor, inv *types.Invoice) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE invoices
		SET invoice_number = ?, invoice_date = ?, status = ?, total_amount = ?, notes = ?,
			cancellation_reason = ?, type = ?, external_invoice_number = ?, net_amount = ?, gross_amount = ?,
			tax_rate = ?, is_small_business = ?, tax_amount = ?,
			service_period_start = ?, service_period_end = ?,
			service_period_start_auto = ?, service_period_end_auto = ?,
			updated_at = ?
		WHERE id = ?
	`, inv.InvoiceNumber, inv.InvoiceDate, inv.Status, inv.TotalAmount, nullString(inv.Notes),
		nullString(inv.CancellationReason), inv.Type, nullString(inv.ExternalInvoiceNumber), inv.NetAmount, inv.GrossAmount,
		inv.TaxRate, inv.IsSmallBusiness, inv.TaxAmount,
		nullString(inv.ServicePeriodStart), nullString(inv.ServicePeriodEnd),
		inv.ServicePeriodStartAuto, inv.ServicePeriodEndAuto,
		inv.UpdatedAt, inv.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("invoice number %s: %w", inv.InvoiceNumber, types.ErrDuplicateInvoiceNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// recalcInvoice refreshes total, tax and auto service period of inv from its
// linked entries and persists them. Only drafts move; other invoices keep
// their frozen figures.
func (s *SQLiteStorage) recalcInvoice(ctx context.Context, ex migrations.Executor, inv *types.Invoice) error {
	if inv.Status != types.InvoiceDraft {
		return nil
	}
	entries, err := linkedEntries(ctx, ex, inv.ID)
	if err != nil {
		return err
	}
	billing.Recalculate(inv, billing.LinesFromEntries(entries))
	inv.UpdatedAt = s.timestamp()
	return writeInvoice(ctx, ex, inv)
}

func (s *SQLiteStorage) recalcDraftsForProject(ctx context.Context, ex migrations.Executor, projectID int64) error {
	rows, err := ex.QueryContext(ctx, `
		SELECT DISTINCT i.id FROM invoices i
		JOIN time_entries e ON e.invoice_id = i.id
		WHERE e.project_id = ? AND i.status = ?
	`, projectID, types.InvoiceDraft)
	if err != nil {
		return fmt.Errorf("failed to find draft invoices: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Close rows before executing any statements on the same connection
	_ = rows.Close()

	for _, id := range ids {
		inv, err := getInvoice(ctx, ex, id)
		if err != nil {
			return err
		}
		if err := s.recalcInvoice(ctx, ex, inv); err != nil {
			return err
		}
	}
	return nil
}

// attachEntries links unbilled entries to a draft invoice and re-prices it.
// Any entry already on an invoice rejects the whole batch.
func (s *SQLiteStorage) attachEntries(ctx context.Context, ex migrations.Executor, inv *types.Invoice, entryIDs []int64) error {
	ids := billing.SortedUniqueIDs(entryIDs)
	if len(ids) == 0 {
		return types.ErrEmptyEntrySet
	}
	if err := billing.CheckCanAttach(inv.Status); err != nil {
		return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
	}

	for _, id := range ids {
		e, err := getEntry(ctx, ex, id)
		if err != nil {
			return err
		}
		if e.InvoiceID == nil {
			continue
		}
		other, err := getInvoice(ctx, ex, *e.InvoiceID)
		if isNotFound(err) {
			return fmt.Errorf("time entry %d references invoice %d: %w", id, *e.InvoiceID, types.ErrDanglingInvoiceRef)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("time entry %d is on invoice %s: %w", id, other.InvoiceNumber, types.ErrEntryAlreadyAttached)
	}

	now := s.timestamp()
	for _, id := range ids {
		if _, err := ex.ExecContext(ctx, `
			UPDATE time_entries SET invoice_id = ?, billing_status = ?, updated_at = ? WHERE id = ?
		`, inv.ID, types.BillingInDraft, now, id); err != nil {
			return fmt.Errorf("failed to attach time entry %d: %w", id, err)
		}
	}
	return s.recalcInvoice(ctx, ex, inv)
}

// CreateInvoice creates a draft invoice. An empty invoice number is generated;
// entries listed in the input are attached in the same transaction.
func (s *SQLiteStorage) CreateInvoice(ctx context.Context, in *types.InvoiceInput) (*types.Invoice, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := validateAmounts(in.NetAmount, in.GrossAmount); err != nil {
		return nil, err
	}

	var created *types.Invoice
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		now := s.timestamp()
		number := strings.TrimSpace(in.InvoiceNumber)
		if number == "" {
			var err error
			if number, err = nextInvoiceNumber(ctx, conn, s.now().Year()); err != nil {
				return err
			}
		} else {
			taken, err := invoiceNumberTaken(ctx, conn, number, 0)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("invoice number %s: %w", number, types.ErrDuplicateInvoiceNumber)
			}
		}

		date := in.InvoiceDate
		if date == "" {
			date = s.now().Format(types.DateLayout)
		}

		inv := &types.Invoice{
			InvoiceNumber:          number,
			InvoiceDate:            date,
			Status:                 types.InvoiceDraft,
			TotalAmount:            decimal.Zero,
			Notes:                  in.Notes,
			Type:                   in.Type,
			ExternalInvoiceNumber:  in.ExternalInvoiceNumber,
			NetAmount:              in.NetAmount,
			GrossAmount:            in.GrossAmount,
			TaxRate:                in.TaxRate,
			IsSmallBusiness:        in.IsSmallBusiness,
			ServicePeriodStart:     in.ServicePeriodStart,
			ServicePeriodEnd:       in.ServicePeriodEnd,
			ServicePeriodStartAuto: in.ServicePeriodStart == "",
			ServicePeriodEndAuto:   in.ServicePeriodEnd == "",
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		inv.TaxAmount = billing.ComputeTax(inv)

		res, err := conn.ExecContext(ctx, `
			INSERT INTO invoices (invoice_number, invoice_date, status, total_amount, notes,
				type, external_invoice_number, net_amount, gross_amount,
				tax_rate, is_small_business, tax_amount,
				service_period_start, service_period_end, service_period_start_auto, service_period_end_auto,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, inv.InvoiceNumber, inv.InvoiceDate, inv.Status, inv.TotalAmount, nullString(inv.Notes),
			inv.Type, nullString(inv.ExternalInvoiceNumber), inv.NetAmount, inv.GrossAmount,
			inv.TaxRate, inv.IsSmallBusiness, inv.TaxAmount,
			nullString(inv.ServicePeriodStart), nullString(inv.ServicePeriodEnd),
			inv.ServicePeriodStartAuto, inv.ServicePeriodEndAuto,
			inv.CreatedAt, inv.UpdatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number %s: %w", number, types.ErrDuplicateInvoiceNumber)
		}
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}
		if inv.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get invoice id: %w", err)
		}

		if len(in.EntryIDs) > 0 {
			if err := s.attachEntries(ctx, conn, inv, in.EntryIDs); err != nil {
				return err
			}
			if err := billing.CheckServicePeriod(inv); err != nil {
				return err
			}
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateAmounts(amounts ...decimal.NullDecimal) error {
	for _, a := range amounts {
		if a.Valid && a.Decimal.IsNegative() {
			return fmt.Errorf("amount %s: %w", a.Decimal, types.ErrInvalidAmount)
		}
	}
	return nil
}

// UpdateInvoice applies a partial update. Drafts accept any field; finalized
// and cancelled invoices accept notes, and cancelled ones their cancellation
// reason. Setting a service-period boundary pins it; resetting it returns the
// boundary to automatic derivation.
func (s *SQLiteStorage) UpdateInvoice(ctx context.Context, id int64, u *types.InvoiceUpdate) (*types.Invoice, error) {
	var updated *types.Invoice
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		inv, err := getInvoice(ctx, conn, id)
		if err != nil {
			return err
		}
		if err := billing.CheckUpdate(inv.Status, u); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
		}
		if err := applyInvoiceUpdate(ctx, conn, inv, u); err != nil {
			return err
		}

		inv.UpdatedAt = s.timestamp()
		if inv.Status == types.InvoiceDraft {
			entries, err := linkedEntries(ctx, conn, inv.ID)
			if err != nil {
				return err
			}
			// a pinned boundary is checked against the derived one as well
			billing.Recalculate(inv, billing.LinesFromEntries(entries))
			if touchesServicePeriod(u) {
				if err := billing.CheckServicePeriod(inv); err != nil {
					return err
				}
			}
		}
		if err := writeInvoice(ctx, conn, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyInvoiceUpdate(ctx context.Context, ex migrations.Executor, inv *types.Invoice, u *types.InvoiceUpdate) error {
	if u.InvoiceNumber != nil {
		number := strings.TrimSpace(*u.InvoiceNumber)
		if number == "" {
			return fmt.Errorf("invoice number: %w", types.ErrMissingField)
		}
		taken, err := invoiceNumberTaken(ctx, ex, number, inv.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("invoice number %s: %w", number, types.ErrDuplicateInvoiceNumber)
		}
		inv.InvoiceNumber = number
	}
	if u.InvoiceDate != nil {
		if err := types.ValidateDate(*u.InvoiceDate); err != nil {
			return err
		}
		inv.InvoiceDate = *u.InvoiceDate
	}
	if u.Notes != nil {
		inv.Notes = *u.Notes
	}
	if u.CancellationReason != nil {
		inv.CancellationReason = strings.TrimSpace(*u.CancellationReason)
	}
	if u.Type != nil {
		if !u.Type.IsValid() {
			return fmt.Errorf("invoice type %q: %w", *u.Type, types.ErrInvalidStatus)
		}
		inv.Type = *u.Type
	}
	if u.ExternalInvoiceNumber != nil {
		inv.ExternalInvoiceNumber = *u.ExternalInvoiceNumber
	}
	if u.NetAmount != nil {
		inv.NetAmount = decimal.NewNullDecimal(*u.NetAmount)
	}
	if u.GrossAmount != nil {
		inv.GrossAmount = decimal.NewNullDecimal(*u.GrossAmount)
	}
	if err := validateAmounts(inv.NetAmount, inv.GrossAmount); err != nil {
		return err
	}
	if u.TaxRate != nil {
		if u.TaxRate.IsNegative() {
			return fmt.Errorf("tax rate %s: %w", *u.TaxRate, types.ErrInvalidAmount)
		}
		inv.TaxRate = *u.TaxRate
	}
	if u.IsSmallBusiness != nil {
		inv.IsSmallBusiness = *u.IsSmallBusiness
	}

	if u.ServicePeriodStart != nil {
		if *u.ServicePeriodStart != "" {
			if err := types.ValidateDate(*u.ServicePeriodStart); err != nil {
				return err
			}
		}
		inv.ServicePeriodStart = *u.ServicePeriodStart
		inv.ServicePeriodStartAuto = false
	}
	if u.ServicePeriodEnd != nil {
		if *u.ServicePeriodEnd != "" {
			if err := types.ValidateDate(*u.ServicePeriodEnd); err != nil {
				return err
			}
		}
		inv.ServicePeriodEnd = *u.ServicePeriodEnd
		inv.ServicePeriodEndAuto = false
	}
	if u.ResetServicePeriodStart {
		inv.ServicePeriodStartAuto = true
	}
	if u.ResetServicePeriodEnd {
		inv.ServicePeriodEndAuto = true
	}
	return nil
}

func touchesServicePeriod(u *types.InvoiceUpdate) bool {
	return u.ServicePeriodStart != nil || u.ServicePeriodEnd != nil ||
		u.ResetServicePeriodStart || u.ResetServicePeriodEnd
}

// DeleteInvoice removes a draft or cancelled invoice, releasing its entries
// back to unbilled. Finalized invoices are never deleted.
func (s *SQLiteStorage) DeleteInvoice(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		inv, err := getInvoice(ctx, conn, id)
		if err != nil {
			return err
		}
		if err := billing.CheckDelete(inv.Status); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
		}
		if _, err := conn.ExecContext(ctx, `
			UPDATE time_entries SET invoice_id = NULL, billing_status = ?, updated_at = ? WHERE invoice_id = ?
		`, types.BillingUnbilled, s.timestamp(), id); err != nil {
			return fmt.Errorf("failed to detach time entries: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return nil
	})
}

// FinalizeInvoice moves a draft to invoiced, fixing its total and locking its entries
func (s *SQLiteStorage) FinalizeInvoice(ctx context.Context, id int64) (*types.Invoice, error) {
	var finalized *types.Invoice
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		inv, err := getInvoice(ctx, conn, id)
		if err != nil {
			return err
		}
		if err := billing.CheckFinalize(inv.Status); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
		}

		entries, err := linkedEntries(ctx, conn, id)
		if err != nil {
			return err
		}
		billing.Recalculate(inv, billing.LinesFromEntries(entries))
		inv.Status = types.InvoiceInvoiced
		inv.UpdatedAt = s.timestamp()
		if err := writeInvoice(ctx, conn, inv); err != nil {
			return err
		}

		status, _ := billing.BillingStatusFor(inv.Status)
		if _, err := conn.ExecContext(ctx, `
			UPDATE time_entries SET billing_status = ?, updated_at = ? WHERE invoice_id = ?
		`, status, inv.UpdatedAt, id); err != nil {
			return fmt.Errorf("failed to lock time entries: %w", err)
		}
		finalized = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// CancelInvoice voids a draft or finalized invoice. Linked entries stay
// attached with their billing status untouched; releasing them is a separate
// RemoveTimeEntriesFromInvoice call.
func (s *SQLiteStorage) CancelInvoice(ctx context.Context, id int64, reason string) (*types.Invoice, error) {
	var cancelled *types.Invoice
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		inv, err := getInvoice(ctx, conn, id)
		if err != nil {
			return err
		}
		if err := billing.CheckCancel(inv.Status, reason); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
		}
		inv.Status = types.InvoiceCancelled
		inv.CancellationReason = strings.TrimSpace(reason)
		inv.UpdatedAt = s.timestamp()
		if err := writeInvoice(ctx, conn, inv); err != nil {
			return err
		}
		cancelled = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// AddTimeEntriesToInvoice attaches unbilled entries to a draft invoice as one batch
func (s *SQLiteStorage) AddTimeEntriesToInvoice(ctx context.Context, invoiceID int64, entryIDs []int64) (*types.InvoiceWithEntries, error) {
	var result *types.InvoiceWithEntries
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		inv, err := getInvoice(ctx, conn, invoiceID)
		if err != nil {
			return err
		}
		if err := s.attachEntries(ctx, conn, inv, entryIDs); err != nil {
			return err
		}
		entries, err := linkedEntries(ctx, conn, invoiceID)
		if err != nil {
			return err
		}
		result = &types.InvoiceWithEntries{Invoice: *inv, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveTimeEntriesFromInvoice releases entries back to unbilled. Entries on a
// finalized invoice are locked and reject the whole batch. Draft invoices are
// re-priced; cancelled invoices keep their frozen totals.
func (s *SQLiteStorage) RemoveTimeEntriesFromInvoice(ctx context.Context, entryIDs []int64) error {
	ids := billing.SortedUniqueIDs(entryIDs)
	if len(ids) == 0 {
		return types.ErrEmptyEntrySet
	}

	return s.withTx(ctx, func(conn *sql.Conn) error {
		affected := make(map[int64]*types.Invoice)
		var order []int64
		for _, id := range ids {
			e, err := getEntry(ctx, conn, id)
			if err != nil {
				return err
			}
			if e.InvoiceID == nil {
				return fmt.Errorf("time entry %d: %w", id, types.ErrEntryNotAttached)
			}
			inv, ok := affected[*e.InvoiceID]
			if !ok {
				inv, err = getInvoice(ctx, conn, *e.InvoiceID)
				if isNotFound(err) {
					return fmt.Errorf("time entry %d references invoice %d: %w", id, *e.InvoiceID, types.ErrDanglingInvoiceRef)
				}
				if err != nil {
					return err
				}
				affected[inv.ID] = inv
				order = append(order, inv.ID)
			}
			if err := billing.CheckCanDetach(inv.Status); err != nil {
				return fmt.Errorf("time entry %d on invoice %s: %w", id, inv.InvoiceNumber, err)
			}
		}

		now := s.timestamp()
		for _, id := range ids {
			if _, err := conn.ExecContext(ctx, `
				UPDATE time_entries SET invoice_id = NULL, billing_status = ?, updated_at = ? WHERE id = ?
			`, types.BillingUnbilled, now, id); err != nil {
				return fmt.Errorf("failed to detach time entry %d: %w", id, err)
			}
		}

		for _, invID := range order {
			if err := s.recalcInvoice(ctx, conn, affected[invID]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetUnbilledTimeEntries returns every entry not linked to an invoice
func (s *SQLiteStorage) GetUnbilledTimeEntries(ctx context.Context) ([]*types.TimeEntryWithProject, error) {
	return queryEntries(ctx, s.db, `WHERE e.invoice_id IS NULL`)
}

// GenerateNextInvoiceNumber previews the number the next generated invoice
// would get. CreateInvoice allocates inside its own transaction, so this value
// is advisory.
func (s *SQLiteStorage) GenerateNextInvoiceNumber(ctx context.Context) (string, error) {
	return nextInvoiceNumber(ctx, s.db, s.now().Year())
}

// GetInvoice retrieves an invoice by ID
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id int64) (*types.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

// GetInvoiceByNumber retrieves an invoice by its invoice number
func (s *SQLiteStorage) GetInvoiceByNumber(ctx context.Context, number string) (*types.Invoice, error) {
	// #nosec G201 - column list is a constant
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE invoice_number = ?`, invoiceColumns), number))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %s: %w", number, types.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceWithEntries retrieves an invoice together with its linked entries
func (s *SQLiteStorage) GetInvoiceWithEntries(ctx context.Context, id int64) (*types.InvoiceWithEntries, error) {
	inv, err := getInvoice(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	entries, err := linkedEntries(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &types.InvoiceWithEntries{Invoice: *inv, Entries: entries}, nil
}

// ComputeInvoiceTotal sums the invoice's linked entries at current project rates.
// It does not write; for a draft it always equals the stored total.
func (s *SQLiteStorage) ComputeInvoiceTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	if _, err := getInvoice(ctx, s.db, id); err != nil {
		return decimal.Zero, err
	}
	entries, err := linkedEntries(ctx, s.db, id)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.ComputeTotal(billing.LinesFromEntries(entries)), nil
}

// ListInvoices returns invoices newest first
func (s *SQLiteStorage) ListInvoices(ctx context.Context, filter types.InvoiceFilter) ([]*types.Invoice, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`SELECT %s FROM invoices`, invoiceColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY invoice_date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []*types.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
