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

// ─── Credit Payment Store ───────────────────────────────────────────────────

// CreatePayment inserts a payment row without touching the owning
// account's balance. The ledger service composes this with ApplyDelta in
// one transaction; calling it standalone is for tooling and tests.
func (db *DB) CreatePayment(ctx context.Context, accountID string, amount domain.Money, method, notes string) (*domain.CreditPayment, error) {
	var p *domain.CreditPayment
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = insertPayment(ctx, tx, accountID, amount, method, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func insertPayment(ctx context.Context, q querier, accountID string, amount domain.Money, method, notes string) (*domain.CreditPayment, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("amount", "must be greater than zero, got %s", amount)
	}
	if method == "" {
		return nil, domain.Validationf("payment_method", "required")
	}

	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_accounts WHERE id = ?`, accountID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrAccountNotFound
	}

	p := &domain.CreditPayment{
		ID:              uuid.NewString(),
		CreditAccountID: accountID,
		Amount:          amount,
		PaymentMethod:   method,
		Notes:           notes,
		CreatedAt:       time.Now(),
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_payments (id, credit_account_id, amount, payment_method, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.CreditAccountID, p.Amount.Centavos(), p.PaymentMethod, p.Notes, formatTime(p.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

// GetPayment retrieves a payment by ID.
func (db *DB) GetPayment(ctx context.Context, id string) (*domain.CreditPayment, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, credit_account_id, amount, payment_method, notes, created_at
		FROM credit_payments WHERE id = ?
	`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func scanPayment(row rowScanner) (*domain.CreditPayment, error) {
	var (
		p         domain.CreditPayment
		amount    int64
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.CreditAccountID, &amount, &p.PaymentMethod, &p.Notes, &createdAt); err != nil {
		return nil, err
	}
	p.Amount = domain.FromCentavos(amount)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// ListPaymentsByAccount returns an account's payments ordered by creation
// time ascending. The account must exist.
func (db *DB) ListPaymentsByAccount(ctx context.Context, accountID string) ([]*domain.CreditPayment, error) {
	if _, err := db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, credit_account_id, amount, payment_method, notes, created_at
		FROM credit_payments WHERE credit_account_id = ?
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.CreditPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePayment removes a single payment row and returns it. The balance
// reversal belongs to the ledger service; see ReversePaymentTx.
func (db *DB) DeletePayment(ctx context.Context, id string) (*domain.CreditPayment, error) {
	p, err := db.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := db.db.ExecContext(ctx, `DELETE FROM credit_payments WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete payment: %w", err)
	}
	return p, nil
}

// DeletePaymentsByAccount removes every payment owned by the account and
// reports how many rows went away. Used by the cascade and by the
// reconciler's orphan cleanup.
func (db *DB) DeletePaymentsByAccount(ctx context.Context, accountID string) (int, error) {
	res, err := db.db.ExecContext(ctx, `DELETE FROM credit_payments WHERE credit_account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete payments: %w", err)
	}
	return int(n), nil
}

// ─── Transactional composites ───────────────────────────────────────────────
// Payment creation/reversal and the matching balance delta land together
// or not at all: no orphaned payment, no uncredited balance change.

// RecordPaymentTx inserts a payment and applies +amount to the account the
// caller last read, in one transaction. Returns ErrStaleAccount when a
// concurrent writer got there first.
func (db *DB) RecordPaymentTx(ctx context.Context, acct *domain.CreditAccount, amount domain.Money, method, notes string) (*domain.CreditPayment, *domain.CreditAccount, error) {
	var (
		p       *domain.CreditPayment
		updated *domain.CreditAccount
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = insertPayment(ctx, tx, acct.ID, amount, method, notes)
		if err != nil {
			return err
		}
		updated, err = applyDelta(ctx, tx, acct, amount)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p, updated, nil
}

// ReversePaymentTx deletes a payment and applies -amount to the account
// the caller last read, in one transaction. Reopens a closed account when
// the balance becomes positive again.
func (db *DB) ReversePaymentTx(ctx context.Context, acct *domain.CreditAccount, p *domain.CreditPayment) (*domain.CreditAccount, error) {
	var updated *domain.CreditAccount
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM credit_payments WHERE id = ?`, p.ID)
		if err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrPaymentNotFound
		}
		updated, err = applyDelta(ctx, tx, acct, -p.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ─── Reconciliation queries ─────────────────────────────────────────────────

// PaymentSums returns, per account ID, the sum of its payment amounts.
// Accounts with no payments are absent from the map.
func (db *DB) PaymentSums(ctx context.Context) (map[string]domain.Money, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT credit_account_id, SUM(amount)
		FROM credit_payments GROUP BY credit_account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("payment sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]domain.Money)
	for rows.Next() {
		var accountID string
		var sum int64
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, fmt.Errorf("payment sums: %w", err)
		}
		sums[accountID] = domain.FromCentavos(sum)
	}
	return sums, rows.Err()
}

// OrphanPayments returns payments whose owning account no longer exists —
// the footprint of a cascade delete interrupted between its two phases.
func (db *DB) OrphanPayments(ctx context.Context) ([]*domain.CreditPayment, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT p.id, p.credit_account_id, p.amount, p.payment_method, p.notes, p.created_at
		FROM credit_payments p
		LEFT JOIN credit_accounts a ON a.id = p.credit_account_id
		WHERE a.id IS NULL
		ORDER BY p.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("orphan payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.CreditPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("orphan payments: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
