package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hourbook/hourbook/internal/billing"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
)

func scanEntryWithProject(row rowScanner) (*types.TimeEntryWithProject, error) {
	var e types.TimeEntryWithProject
	var start, end, description sql.NullString
	var invoiceID sql.NullInt64
	if err := row.Scan(
		&e.ID, &e.ProjectID, &e.Date, &start, &end, &e.DurationMinutes,
		&description, &invoiceID, &e.BillingStatus, &e.CreatedAt, &e.UpdatedAt,
		&e.ProjectName, &e.HourlyRate,
	); err != nil {
		return nil, err
	}
	e.StartTime = start.String
	e.EndTime = end.String
	e.Description = description.String
	if invoiceID.Valid {
		id := invoiceID.Int64
		e.InvoiceID = &id
	}
	return &e, nil
}

func queryEntries(ctx context.Context, ex migrations.Executor, where string, args ...any) ([]*types.TimeEntryWithProject, error) {
	// #nosec G201 - where clauses are built from constants
	query := fmt.Sprintf(`
		SELECT %s
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		%s
		ORDER BY e.date, e.start_time, e.id
	`, entryWithProjectColumns, where)

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.TimeEntryWithProject
	for rows.Next() {
		e, err := scanEntryWithProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func getEntry(ctx context.Context, ex migrations.Executor, id int64) (*types.TimeEntryWithProject, error) {
	entries, err := queryEntries(ctx, ex, `WHERE e.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("time entry %d: %w", id, types.ErrEntryNotFound)
	}
	return entries[0], nil
}

// CreateTimeEntry logs an unbilled entry. Start and end times, when both
// given, determine the stored duration.
func (s *SQLiteStorage) CreateTimeEntry(ctx context.Context, e *types.TimeEntry) error {
	if err := types.ValidateDate(e.Date); err != nil {
		return err
	}
	duration, err := billing.ResolveDuration(e.StartTime, e.EndTime, e.DurationMinutes)
	if err != nil {
		return err
	}
	now := s.timestamp()

	return s.withTx(ctx, func(conn *sql.Conn) error {
		if _, err := getProject(ctx, conn, e.ProjectID); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, `
			INSERT INTO time_entries (project_id, date, start_time, end_time, duration_minutes,
				description, invoice_id, billing_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
		`, e.ProjectID, e.Date, nullString(e.StartTime), nullString(e.EndTime), duration,
			nullString(strings.TrimSpace(e.Description)), types.BillingUnbilled, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert time entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get time entry id: %w", err)
		}
		e.ID = id
		e.DurationMinutes = duration
		e.Description = strings.TrimSpace(e.Description)
		e.InvoiceID = nil
		e.BillingStatus = types.BillingUnbilled
		e.CreatedAt = now
		e.UpdatedAt = now
		return nil
	})
}

// GetTimeEntry retrieves an entry joined with its project
func (s *SQLiteStorage) GetTimeEntry(ctx context.Context, id int64) (*types.TimeEntryWithProject, error) {
	return getEntry(ctx, s.db, id)
}

// ListTimeEntries returns entries in date order
func (s *SQLiteStorage) ListTimeEntries(ctx context.Context, filter types.TimeEntryFilter) ([]*types.TimeEntryWithProject, error) {
	var clauses []string
	var args []any
	if filter.ProjectID != nil {
		clauses = append(clauses, "e.project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.From != "" {
		clauses = append(clauses, "e.date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		clauses = append(clauses, "e.date <= ?")
		args = append(args, filter.To)
	}
	if filter.BillingStatus != "" {
		clauses = append(clauses, "e.billing_status = ?")
		args = append(args, filter.BillingStatus)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	entries, err := queryEntries(ctx, s.db, where, args...)
	if err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// entryPolicy applies the edit policy for an entry's linked invoice.
// It returns the draft invoice to re-price, if any.
func entryPolicy(ctx context.Context, ex migrations.Executor, e *types.TimeEntryWithProject) (*types.Invoice, error) {
	if e.InvoiceID == nil {
		return nil, nil
	}
	inv, err := getInvoice(ctx, ex, *e.InvoiceID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("time entry %d references invoice %d: %w", e.ID, *e.InvoiceID, types.ErrDanglingInvoiceRef)
		}
		return nil, err
	}
	warn, err := billing.EntryEditPolicy(inv.Status)
	if err != nil {
		return nil, fmt.Errorf("time entry %d is on invoice %s: %w", e.ID, inv.InvoiceNumber, err)
	}
	if warn {
		return inv, nil
	}
	return nil, nil
}

// UpdateTimeEntry edits an entry's own fields. Entries on a finalized invoice
// are locked. Editing an entry on a draft invoice re-prices the draft and
// returns a warning.
func (s *SQLiteStorage) UpdateTimeEntry(ctx context.Context, id int64, u *types.TimeEntryUpdate) (*types.EntryChangeResult, error) {
	result := &types.EntryChangeResult{}
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		e, err := getEntry(ctx, conn, id)
		if err != nil {
			return err
		}
		draft, err := entryPolicy(ctx, conn, e)
		if err != nil {
			return err
		}
		if u.IsEmpty() {
			result.Entry = e
			return nil
		}

		if u.ProjectID != nil && *u.ProjectID != e.ProjectID {
			if _, err := getProject(ctx, conn, *u.ProjectID); err != nil {
				return err
			}
			e.ProjectID = *u.ProjectID
		}
		if u.Date != nil {
			if err := types.ValidateDate(*u.Date); err != nil {
				return err
			}
			e.Date = *u.Date
		}
		if u.Description != nil {
			e.Description = strings.TrimSpace(*u.Description)
		}

		timesChanged := u.StartTime != nil || u.EndTime != nil
		if u.StartTime != nil {
			e.StartTime = *u.StartTime
		}
		if u.EndTime != nil {
			e.EndTime = *u.EndTime
		}
		if u.DurationMinutes != nil {
			e.DurationMinutes = *u.DurationMinutes
			if !timesChanged {
				// an explicit duration replaces the clock range
				e.StartTime, e.EndTime = "", ""
			}
		}
		if timesChanged || u.DurationMinutes != nil {
			d, err := billing.ResolveDuration(e.StartTime, e.EndTime, e.DurationMinutes)
			if err != nil {
				return err
			}
			e.DurationMinutes = d
		}
		e.UpdatedAt = s.timestamp()

		_, err = conn.ExecContext(ctx, `
			UPDATE time_entries
			SET project_id = ?, date = ?, start_time = ?, end_time = ?, duration_minutes = ?,
				description = ?, updated_at = ?
			WHERE id = ?
		`, e.ProjectID, e.Date, nullString(e.StartTime), nullString(e.EndTime), e.DurationMinutes,
			nullString(e.Description), e.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("failed to update time entry: %w", err)
		}

		if draft != nil {
			if err := s.recalcInvoice(ctx, conn, draft); err != nil {
				return err
			}
			result.Warning = fmt.Sprintf("time entry %d is on draft invoice %s; invoice total recalculated to %s",
				id, draft.InvoiceNumber, draft.TotalAmount.StringFixed(2))
		}

		result.Entry, err = getEntry(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteTimeEntry removes an entry under the same policy as UpdateTimeEntry
func (s *SQLiteStorage) DeleteTimeEntry(ctx context.Context, id int64) (*types.EntryChangeResult, error) {
	result := &types.EntryChangeResult{}
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		e, err := getEntry(ctx, conn, id)
		if err != nil {
			return err
		}
		draft, err := entryPolicy(ctx, conn, e)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete time entry: %w", err)
		}
		if draft != nil {
			if err := s.recalcInvoice(ctx, conn, draft); err != nil {
				return err
			}
			result.Warning = fmt.Sprintf("time entry %d was on draft invoice %s; invoice total recalculated to %s",
				id, draft.InvoiceNumber, draft.TotalAmount.StringFixed(2))
		}
		result.Entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
