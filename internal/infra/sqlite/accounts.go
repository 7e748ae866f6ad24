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

// ─── Credit Account Store ───────────────────────────────────────────────────

// CreateAccount opens a new credit account for a customer. The account
// starts active with paid = 0 and remaining = total, and receives a fresh
// account number from the monotonic sequence.
func (db *DB) CreateAccount(ctx context.Context, customerID string, total domain.Money) (*domain.CreditAccount, error) {
	if !total.IsPositive() {
		return nil, domain.Validationf("total_amount", "must be greater than zero, got %s", total)
	}
	if customerID == "" {
		return nil, domain.Validationf("customer_id", "required")
	}

	var acct *domain.CreditAccount
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, customerID).Scan(&exists); err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		if exists == 0 {
			return domain.ErrCustomerNotFound
		}

		number, err := nextAccountNumber(ctx, tx)
		if err != nil {
			return err
		}

		now := time.Now()
		acct = &domain.CreditAccount{
			ID:              uuid.NewString(),
			AccountNumber:   number,
			CustomerID:      customerID,
			TotalAmount:     total,
			PaidAmount:      0,
			RemainingAmount: total,
			Status:          domain.StatusActive,
			CreatedAt:       now,
			Version:         1,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO credit_accounts
				(id, account_number, customer_id, total_amount, paid_amount, remaining_amount, status, closed_at, created_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, 1)
		`, acct.ID, acct.AccountNumber, acct.CustomerID,
			acct.TotalAmount.Centavos(), acct.PaidAmount.Centavos(), acct.RemainingAmount.Centavos(),
			string(acct.Status), formatTime(now))
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// nextAccountNumber advances the monotonic sequence and formats the next
// human-facing account number. The sequence only moves forward, so numbers
// of deleted accounts are never reused.
func nextAccountNumber(ctx context.Context, q querier) (string, error) {
	if _, err := q.ExecContext(ctx, `UPDATE account_seq SET n = n + 1 WHERE id = 'accounts'`); err != nil {
		return "", fmt.Errorf("advance account sequence: %w", err)
	}
	var n int64
	if err := q.QueryRowContext(ctx, `SELECT n FROM account_seq WHERE id = 'accounts'`).Scan(&n); err != nil {
		return "", fmt.Errorf("read account sequence: %w", err)
	}
	return fmt.Sprintf("CR-%06d", n), nil
}

// GetAccount retrieves an account by ID.
func (db *DB) GetAccount(ctx context.Context, id string) (*domain.CreditAccount, error) {
	return getAccount(ctx, db.db, id)
}

func getAccount(ctx context.Context, q querier, id string) (*domain.CreditAccount, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, account_number, customer_id, total_amount, paid_amount, remaining_amount, status, closed_at, created_at, version
		FROM credit_accounts WHERE id = ?
	`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.CreditAccount, error) {
	var (
		acct                   domain.CreditAccount
		total, paid, remaining int64
		status                 string
		closedAt               sql.NullString
		createdAt              string
	)
	err := row.Scan(&acct.ID, &acct.AccountNumber, &acct.CustomerID,
		&total, &paid, &remaining, &status, &closedAt, &createdAt, &acct.Version)
	if err != nil {
		return nil, err
	}
	acct.TotalAmount = domain.FromCentavos(total)
	acct.PaidAmount = domain.FromCentavos(paid)
	acct.RemainingAmount = domain.FromCentavos(remaining)
	acct.Status = domain.AccountStatus(status)
	acct.CreatedAt = parseTime(createdAt)
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		acct.ClosedAt = &t
	}
	return &acct, nil
}

// ListAccounts returns accounts matching the filter, ordered by creation
// time ascending.
func (db *DB) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.CreditAccount, error) {
	q := `
		SELECT id, account_number, customer_id, total_amount, paid_amount, remaining_amount, status, closed_at, created_at, version
		FROM credit_accounts WHERE 1=1`
	var args []any
	if filter.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		q += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	q += ` ORDER BY created_at ASC`

	rows, err := db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.CreditAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// ApplyDelta is the sole balance-mutation primitive. It adds paidDelta
// (negative for a reversal) to the paid amount of the account as the
// caller last read it, recomputes remaining = max(0, total - paid), flips
// status and closed_at on the active⇄closed edges, and writes the result
// guarded by the account's version. A concurrent writer that got there
// first makes the guard miss and the call fails with ErrStaleAccount; the
// caller re-reads and retries.
func (db *DB) ApplyDelta(ctx context.Context, acct *domain.CreditAccount, paidDelta domain.Money) (*domain.CreditAccount, error) {
	var updated *domain.CreditAccount
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = applyDelta(ctx, tx, acct, paidDelta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyDelta(ctx context.Context, q querier, acct *domain.CreditAccount, paidDelta domain.Money) (*domain.CreditAccount, error) {
	paid := acct.PaidAmount.Add(paidDelta)
	if paid.IsNegative() {
		return nil, domain.ErrNegativePaid
	}
	remaining, _ := acct.TotalAmount.SubFloor(paid)

	next := *acct
	next.PaidAmount = paid
	next.RemainingAmount = remaining
	next.Version = acct.Version + 1

	var closedAt any
	switch {
	case remaining.IsZero() && acct.Status == domain.StatusActive:
		now := time.Now()
		next.Status = domain.StatusClosed
		next.ClosedAt = &now
		closedAt = formatTime(now)
	case remaining.IsPositive() && acct.Status == domain.StatusClosed:
		next.Status = domain.StatusActive
		next.ClosedAt = nil
		closedAt = nil
	default:
		if acct.ClosedAt != nil {
			closedAt = formatTime(*acct.ClosedAt)
		}
	}

	res, err := q.ExecContext(ctx, `
		UPDATE credit_accounts
		SET paid_amount = ?, remaining_amount = ?, status = ?, closed_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, next.PaidAmount.Centavos(), next.RemainingAmount.Centavos(), string(next.Status), closedAt,
		acct.ID, acct.Version)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}
	if n == 0 {
		// Either the row is gone or another writer bumped the version.
		if _, err := getAccount(ctx, q, acct.ID); errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.ErrStaleAccount
	}
	return &next, nil
}

// OverwriteAccount is the audited administrative correction path: it
// replaces stored balances directly, bypassing payment-derived
// computation. It still refuses to persist a state where
// total != paid + remaining, or a status that disagrees with the remaining
// balance.
func (db *DB) OverwriteAccount(ctx context.Context, id string, c domain.AccountCorrection) (*domain.CreditAccount, error) {
	if c.Empty() {
		return nil, domain.Validationf("correction", "no fields to update")
	}

	var updated *domain.CreditAccount
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}

		next := *acct
		if c.TotalAmount != nil {
			next.TotalAmount = *c.TotalAmount
		}
		if c.PaidAmount != nil {
			next.PaidAmount = *c.PaidAmount
		}
		if c.RemainingAmount != nil {
			next.RemainingAmount = *c.RemainingAmount
		} else if c.TotalAmount != nil || c.PaidAmount != nil {
			// Remaining not stated: re-derive it from the corrected pair.
			next.RemainingAmount, _ = next.TotalAmount.SubFloor(next.PaidAmount)
		}

		if next.TotalAmount.IsNegative() || next.PaidAmount.IsNegative() || next.RemainingAmount.IsNegative() {
			return domain.ErrIntegrity
		}
		if wantRemaining, _ := next.TotalAmount.SubFloor(next.PaidAmount); next.RemainingAmount != wantRemaining {
			return domain.ErrIntegrity
		}

		wantStatus := domain.StatusActive
		if next.RemainingAmount.IsZero() {
			wantStatus = domain.StatusClosed
		}
		if c.Status != nil {
			if !c.Status.Valid() {
				return domain.Validationf("status", "unknown status %q", *c.Status)
			}
			if *c.Status != wantStatus {
				return domain.ErrIntegrity
			}
		}
		next.Status = wantStatus

		var closedAt any
		switch {
		case next.Status == domain.StatusClosed && acct.ClosedAt == nil:
			now := time.Now()
			next.ClosedAt = &now
			closedAt = formatTime(now)
		case next.Status == domain.StatusActive:
			next.ClosedAt = nil
			closedAt = nil
		default:
			closedAt = formatTime(*acct.ClosedAt)
		}
		next.Version = acct.Version + 1

		res, err := tx.ExecContext(ctx, `
			UPDATE credit_accounts
			SET total_amount = ?, paid_amount = ?, remaining_amount = ?, status = ?, closed_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`, next.TotalAmount.Centavos(), next.PaidAmount.Centavos(), next.RemainingAmount.Centavos(),
			string(next.Status), closedAt, acct.ID, acct.Version)
		if err != nil {
			return fmt.Errorf("overwrite account: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrStaleAccount
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAccountCascade removes an account together with every payment it
// owns, as one transaction: payments first, then the account, atomically
// or not at all. It returns the human-facing account number and how many
// payment rows were removed.
func (db *DB) DeleteAccountCascade(ctx context.Context, id string) (accountNumber string, deletedPayments int, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		accountNumber = acct.AccountNumber

		res, err := tx.ExecContext(ctx, `DELETE FROM credit_payments WHERE credit_account_id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade payments: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cascade payments: %w", err)
		}
		deletedPayments = int(n)

		if _, err := tx.ExecContext(ctx, `DELETE FROM credit_accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return accountNumber, deletedPayments, nil
}

// Outstanding aggregates remaining balances across accounts matching the
// filter.
func (db *DB) Outstanding(ctx context.Context, filter domain.AccountFilter) (*domain.OutstandingReport, error) {
	q := `
		SELECT
			COALESCE(SUM(remaining_amount), 0),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(paid_amount), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0)
		FROM credit_accounts WHERE 1=1`
	var args []any
	if filter.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		q += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}

	var outstanding, extended, paid int64
	var active, closed int
	err := db.db.QueryRowContext(ctx, q, args...).Scan(&outstanding, &extended, &paid, &active, &closed)
	if err != nil {
		return nil, fmt.Errorf("outstanding report: %w", err)
	}
	return &domain.OutstandingReport{
		Outstanding:    domain.FromCentavos(outstanding),
		TotalExtended:  domain.FromCentavos(extended),
		TotalPaid:      domain.FromCentavos(paid),
		ActiveAccounts: active,
		ClosedAccounts: closed,
	}, nil
}
