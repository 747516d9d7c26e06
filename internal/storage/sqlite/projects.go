package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/types"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*types.Project, error) {
	var p types.Project
	var clientName sql.NullString
	var customerID sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.HourlyRate, &clientName, &customerID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if clientName.Valid {
		p.ClientName = clientName.String
	}
	if customerID.Valid {
		id := customerID.Int64
		p.CustomerID = &id
	}
	return &p, nil
}

func getProject(ctx context.Context, ex migrations.Executor, id int64) (*types.Project, error) {
	// #nosec G201 - column list is a constant
	p, err := scanProject(ex.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM projects WHERE id = ?`, projectColumns), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %d: %w", id, types.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func ensureCustomer(ctx context.Context, ex migrations.Executor, id int64) error {
	var exists bool
	if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check customer existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("customer %d: %w", id, types.ErrCustomerNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// CreateProject inserts a project and fills in its ID and timestamps
func (s *SQLiteStorage) CreateProject(ctx context.Context, p *types.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := s.timestamp()

	return s.withTx(ctx, func(conn *sql.Conn) error {
		if p.CustomerID != nil {
			if err := ensureCustomer(ctx, conn, *p.CustomerID); err != nil {
				return err
			}
		}
		res, err := conn.ExecContext(ctx, `
			INSERT INTO projects (name, hourly_rate, client_name, customer_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, strings.TrimSpace(p.Name), p.HourlyRate, nullString(p.ClientName), nullInt64(p.CustomerID), p.Status, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get project id: %w", err)
		}
		p.ID = id
		p.Name = strings.TrimSpace(p.Name)
		p.CreatedAt = now
		p.UpdatedAt = now
		return nil
	})
}

// GetProject retrieves a project by ID
func (s *SQLiteStorage) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	return getProject(ctx, s.db, id)
}

// ListProjects returns projects ordered by name, optionally filtered by status
func (s *SQLiteStorage) ListProjects(ctx context.Context, status types.ProjectStatus) ([]*types.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects`, projectColumns)
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update. A rate change re-prices every draft
// invoice holding entries of this project.
func (s *SQLiteStorage) UpdateProject(ctx context.Context, id int64, u *types.ProjectUpdate) (*types.Project, error) {
	var updated *types.Project
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		p, err := getProject(ctx, conn, id)
		if err != nil {
			return err
		}

		rateChanged := false
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.ClearHourlyRate {
			rateChanged = p.HourlyRate.Valid
			p.HourlyRate = decimal.NullDecimal{}
		} else if u.HourlyRate != nil {
			rateChanged = !p.HourlyRate.Valid || !p.HourlyRate.Decimal.Equal(*u.HourlyRate)
			p.HourlyRate = decimal.NewNullDecimal(*u.HourlyRate)
		}
		if u.ClientName != nil {
			p.ClientName = *u.ClientName
		}
		if u.ClearCustomer {
			p.CustomerID = nil
		} else if u.CustomerID != nil {
			if err := ensureCustomer(ctx, conn, *u.CustomerID); err != nil {
				return err
			}
			cid := *u.CustomerID
			p.CustomerID = &cid
		}
		if u.Status != nil {
			p.Status = *u.Status
		}
		if err := p.Validate(); err != nil {
			return err
		}
		p.Name = strings.TrimSpace(p.Name)
		p.UpdatedAt = s.timestamp()

		_, err = conn.ExecContext(ctx, `
			UPDATE projects
			SET name = ?, hourly_rate = ?, client_name = ?, customer_id = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, p.Name, p.HourlyRate, nullString(p.ClientName), nullInt64(p.CustomerID), p.Status, p.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if rateChanged {
			if err := s.recalcDraftsForProject(ctx, conn, id); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProject removes a project that no time entry references
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		if _, err := getProject(ctx, conn, id); err != nil {
			return err
		}
		var entries int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_entries WHERE project_id = ?`, id).Scan(&entries); err != nil {
			return fmt.Errorf("failed to count project entries: %w", err)
		}
		if entries > 0 {
			return fmt.Errorf("project %d has %d time entries: %w", id, entries, types.ErrProjectInUse)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
}
