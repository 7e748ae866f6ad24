package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmachado/crediario/internal/domain"
)

// ─── Customer Directory ─────────────────────────────────────────────────────
// The storefront owns customer profiles; the ledger keeps this minimal
// mirror so customer_id references resolve at write time.

// CreateCustomer registers a customer the ledger can open accounts for.
func (db *DB) CreateCustomer(ctx context.Context, name, phone string) (*domain.Customer, error) {
	if name == "" {
		return nil, domain.Validationf("name", "required")
	}
	c := &domain.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		CreatedAt: time.Now(),
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, c.Phone, formatTime(c.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// GetCustomer retrieves a customer by ID.
func (db *DB) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var (
		c         domain.Customer
		createdAt string
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCustomers returns all customers ordered by creation time ascending.
func (db *DB) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, phone, created_at FROM customers ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Customer
	for rows.Next() {
		var (
			c         domain.Customer
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &createdAt); err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}
