// Package domain contains pure business types with ZERO infrastructure
// imports. This is the innermost ring of the application — it depends on
// nothing.
package domain

import "time"

// ─── Credit Accounts ────────────────────────────────────────────────────────

// AccountStatus is the lifecycle state of a credit account.
type AccountStatus string

const (
	// StatusActive means the account still has an outstanding balance.
	StatusActive AccountStatus = "active"
	// StatusClosed means the account is fully repaid. A reversal can
	// reopen it.
	StatusClosed AccountStatus = "closed"
)

// Valid reports whether the status is one of the known states.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusClosed
}

// CreditAccount is a running tab extended to a customer, repaid through one
// or more payments.
type CreditAccount struct {
	ID              string        `json:"id"`
	AccountNumber   string        `json:"account_number"`
	CustomerID      string        `json:"customer_id"`
	TotalAmount     Money         `json:"total_amount"`
	PaidAmount      Money         `json:"paid_amount"`
	RemainingAmount Money         `json:"remaining_amount"`
	Status          AccountStatus `json:"status"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`

	// Version guards concurrent balance mutations. Every successful write
	// increments it; a write against a stale version is rejected.
	Version int64 `json:"-"`
}

// Consistent reports whether the account satisfies the ledger identities:
// remaining == max(0, total - paid), all amounts non-negative, and
// status == closed exactly when remaining == 0. When paid exceeds total
// (an accepted, clamped overpayment) the overshoot stays visible in
// PaidAmount while RemainingAmount floors at zero.
func (a *CreditAccount) Consistent() bool {
	if a.TotalAmount.IsNegative() || a.PaidAmount.IsNegative() || a.RemainingAmount.IsNegative() {
		return false
	}
	want, _ := a.TotalAmount.SubFloor(a.PaidAmount)
	if a.RemainingAmount != want {
		return false
	}
	closed := a.RemainingAmount.IsZero()
	return (a.Status == StatusClosed) == closed
}

// AccountFilter narrows account listings and reports. Zero values mean
// "no filter".
type AccountFilter struct {
	Status     AccountStatus
	CustomerID string
}

// AccountCorrection is the administrative overwrite of stored balances,
// used to repair drifted or mis-entered data. Nil fields are left
// untouched. The result must still satisfy total == paid + remaining.
type AccountCorrection struct {
	TotalAmount     *Money
	PaidAmount      *Money
	RemainingAmount *Money
	Status          *AccountStatus
}

// Empty reports whether the correction changes nothing.
func (c AccountCorrection) Empty() bool {
	return c.TotalAmount == nil && c.PaidAmount == nil &&
		c.RemainingAmount == nil && c.Status == nil
}

// ─── Credit Payments ────────────────────────────────────────────────────────

// CreditPayment is a single repayment applied to exactly one account. The
// account exclusively owns its payments: deleting the account deletes
// them, never the reverse.
type CreditPayment struct {
	ID              string    `json:"id"`
	CreditAccountID string    `json:"credit_account_id"`
	Amount          Money     `json:"amount"`
	PaymentMethod   string    `json:"payment_method"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ─── Customers ──────────────────────────────────────────────────────────────

// Customer is the minimal record the ledger resolves customer references
// against. The storefront owns the full customer profile.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Reporting ──────────────────────────────────────────────────────────────

// OutstandingReport aggregates remaining balances across accounts matching
// a filter.
type OutstandingReport struct {
	Outstanding    Money `json:"outstanding"`
	TotalExtended  Money `json:"total_extended"`
	TotalPaid      Money `json:"total_paid"`
	ActiveAccounts int   `json:"active_accounts"`
	ClosedAccounts int   `json:"closed_accounts"`
}
