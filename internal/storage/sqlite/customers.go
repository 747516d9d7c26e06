package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hourbook/hourbook/internal/types"
)

func scanCustomer(row rowScanner) (*types.Customer, error) {
	var c types.Customer
	var email, phone, address, notes sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &address, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.Notes = notes.String
	return &c, nil
}

// CreateCustomer inserts a customer and fills in its ID and timestamps
func (s *SQLiteStorage) CreateCustomer(ctx context.Context, c *types.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Name = strings.TrimSpace(c.Name)
	now := s.timestamp()

	return s.withTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO customers (name, email, phone, address, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), nullString(c.Notes), now, now)
		if err != nil {
			return fmt.Errorf("failed to insert customer: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get customer id: %w", err)
		}
		c.ID = id
		c.CreatedAt = now
		c.UpdatedAt = now
		return nil
	})
}

// GetCustomer retrieves a customer by ID
func (s *SQLiteStorage) GetCustomer(ctx context.Context, id int64) (*types.Customer, error) {
	// #nosec G201 - column list is a constant
	c, err := scanCustomer(s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM customers WHERE id = ?`, customerColumns), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d: %w", id, types.ErrCustomerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns all customers ordered by name
func (s *SQLiteStorage) ListCustomers(ctx context.Context) ([]*types.Customer, error) {
	// #nosec G201 - column list is a constant
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM customers ORDER BY name COLLATE NOCASE, id`, customerColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var customers []*types.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// DeleteCustomer removes a customer and unlinks its projects in the same transaction
func (s *SQLiteStorage) DeleteCustomer(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		if err := ensureCustomer(ctx, conn, id); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `UPDATE projects SET customer_id = NULL, updated_at = ? WHERE customer_id = ?`, s.timestamp(), id); err != nil {
			return fmt.Errorf("failed to unlink projects: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete customer: %w", err)
		}
		return nil
	})
}
