// Package sqlite is the persistence layer for the crediário ledger:
// credit accounts, credit payments, the customer directory, and the
// account-number sequence. One *DB is opened at process start and injected
// into every consumer; there is no ambient database handle.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the stored timestamp format. Fixed width so that lexical
// ORDER BY on the column equals chronological order, with sub-second
// precision so payments recorded in the same second still list in
// insertion order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// DB wraps the SQLite connection and owns the ledger schema.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database inside dir and runs
// all migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(dir, "crediario.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{db: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// Exec runs a raw statement against the underlying connection. For
// tooling and tests; the store methods cover normal operation.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.db.Exec(query, args...)
}

// Migrations returns the schema migration statements. Each string is a
// single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Customer directory — the resolution target for customer_id.
		// The storefront owns the full profile; this holds the minimum
		// the ledger needs.
		`CREATE TABLE IF NOT EXISTS customers (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,

		// Credit accounts. Amounts are integer centavos. version guards
		// concurrent read-modify-write cycles.
		`CREATE TABLE IF NOT EXISTS credit_accounts (
			id               TEXT PRIMARY KEY,
			account_number   TEXT NOT NULL UNIQUE,
			customer_id      TEXT NOT NULL REFERENCES customers(id),
			total_amount     INTEGER NOT NULL,
			paid_amount      INTEGER NOT NULL DEFAULT 0,
			remaining_amount INTEGER NOT NULL,
			status           TEXT NOT NULL DEFAULT 'active',
			closed_at        TEXT,
			created_at       TEXT NOT NULL,
			version          INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_customer ON credit_accounts(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_status ON credit_accounts(status)`,

		// Credit payments, each owned by exactly one account. No ON
		// DELETE CASCADE: the cascade is an explicit, counted two-step
		// inside one transaction so the caller can report how many rows
		// went away.
		`CREATE TABLE IF NOT EXISTS credit_payments (
			id                TEXT PRIMARY KEY,
			credit_account_id TEXT NOT NULL,
			amount            INTEGER NOT NULL,
			payment_method    TEXT NOT NULL,
			notes             TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_account ON credit_payments(credit_account_id)`,

		// Monotonic account-number sequence. Never decremented, so a
		// deleted account's number is never reassigned.
		`CREATE TABLE IF NOT EXISTS account_seq (
			id TEXT PRIMARY KEY CHECK (id = 'accounts'),
			n  INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO account_seq (id, n) VALUES ('accounts', 0)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// querier is satisfied by both *sql.DB and *sql.Tx so store operations can
// run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
