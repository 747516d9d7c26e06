package migrations

import (
	"context"
	"fmt"
)

func migrateCustomers(ctx context.Context, ex Executor, schema SchemaIntrospector) error {
	_, err := ex.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			address TEXT,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create customers table: %w", err)
	}

	if err := addColumnIfMissing(ctx, ex, schema, "projects", "customer_id", "INTEGER REFERENCES customers(id)"); err != nil {
		return err
	}

	// One customer per distinct legacy client name
	_, err = ex.ExecContext(ctx, `
		INSERT INTO customers (name)
		SELECT DISTINCT TRIM(client_name) FROM projects
		WHERE client_name IS NOT NULL AND TRIM(client_name) <> ''
		  AND TRIM(client_name) NOT IN (SELECT name FROM customers)
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill customers: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		UPDATE projects
		SET customer_id = (
			SELECT MIN(customers.id) FROM customers WHERE customers.name = TRIM(projects.client_name)
		)
		WHERE customer_id IS NULL AND client_name IS NOT NULL AND TRIM(client_name) <> ''
	`)
	if err != nil {
		return fmt.Errorf("failed to link projects to customers: %w", err)
	}
	return nil
}
