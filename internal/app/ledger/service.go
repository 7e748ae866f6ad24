// Package ledger is the orchestrator of the crediário: it composes the
// account and payment stores into the operations the admin API exposes,
// and it is the single place where write policy lives — closed accounts
// reject payments, overpayment is clamped or rejected, and concurrent
// balance mutations are retried a bounded number of times.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rmachado/crediario/internal/domain"
	"github.com/rmachado/crediario/internal/infra/observability"
	"github.com/rmachado/crediario/internal/infra/sqlite"
)

// maxRetries bounds how often a balance mutation is retried after losing
// the optimistic version check before the conflict is surfaced.
const maxRetries = 3

// OverpaymentPolicy selects what happens when a payment exceeds the
// remaining balance.
type OverpaymentPolicy string

const (
	// OverpaymentClamp records the payment at its full amount and floors
	// the remaining balance at zero, closing the account. The overshoot
	// stays visible in the paid amount.
	OverpaymentClamp OverpaymentPolicy = "clamp"
	// OverpaymentReject refuses payments that exceed the remaining
	// balance by more than the configured tolerance.
	OverpaymentReject OverpaymentPolicy = "reject"
)

// Policy is the write policy of the ledger.
type Policy struct {
	Overpayment OverpaymentPolicy
	// Tolerance is the amount by which a payment may exceed the
	// remaining balance under the reject policy (small change rounding
	// at the counter). Ignored under clamp.
	Tolerance domain.Money
}

// DefaultPolicy clamps overpayment, matching the behavior of the admin
// tooling in the field.
func DefaultPolicy() Policy {
	return Policy{Overpayment: OverpaymentClamp}
}

// Service orchestrates the credit account and payment stores.
type Service struct {
	db     *sqlite.DB
	log    *logrus.Logger
	policy Policy
}

// New creates a ledger service over an open database handle.
func New(db *sqlite.DB, log *logrus.Logger, policy Policy) *Service {
	if policy.Overpayment == "" {
		policy.Overpayment = OverpaymentClamp
	}
	return &Service{db: db, log: log, policy: policy}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

// OpenAccount extends credit to a customer.
func (s *Service) OpenAccount(ctx context.Context, customerID string, total domain.Money) (*domain.CreditAccount, error) {
	acct, err := s.db.CreateAccount(ctx, customerID, total)
	if err != nil {
		return nil, err
	}
	observability.AccountsOpened.Inc()
	s.log.WithFields(logrus.Fields{
		"account":  acct.AccountNumber,
		"customer": acct.CustomerID,
		"total":    acct.TotalAmount.String(),
	}).Info("credit account opened")
	return acct, nil
}

// GetAccount retrieves an account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (*domain.CreditAccount, error) {
	return s.db.GetAccount(ctx, id)
}

// ListAccounts lists accounts matching the filter.
func (s *Service) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.CreditAccount, error) {
	return s.db.ListAccounts(ctx, filter)
}

// DeleteResult reports the outcome of an account deletion.
type DeleteResult struct {
	AccountNumber   string `json:"account_number"`
	DeletedPayments int    `json:"deleted_payments"`
}

// DeleteAccount destroys an account and every payment it owns, as one
// transaction, and reports how many payment records were removed.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) (*DeleteResult, error) {
	number, deleted, err := s.db.DeleteAccountCascade(ctx, accountID)
	if err != nil {
		return nil, err
	}
	observability.AccountsDeleted.Inc()
	s.log.WithFields(logrus.Fields{
		"account":          number,
		"deleted_payments": deleted,
	}).Info("credit account deleted")
	return &DeleteResult{AccountNumber: number, DeletedPayments: deleted}, nil
}

// Correct is the audited administrative escape hatch: it overwrites stored
// balances directly, bypassing payment-derived computation, for repairing
// drifted or mis-entered data. Every use is logged with before and after
// states.
func (s *Service) Correct(ctx context.Context, accountID string, c domain.AccountCorrection) (*domain.CreditAccount, error) {
	before, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	after, err := s.db.OverwriteAccount(ctx, accountID, c)
	if err != nil {
		return nil, err
	}
	observability.Corrections.Inc()
	s.log.WithFields(logrus.Fields{
		"account":          after.AccountNumber,
		"total_before":     before.TotalAmount.String(),
		"total_after":      after.TotalAmount.String(),
		"paid_before":      before.PaidAmount.String(),
		"paid_after":       after.PaidAmount.String(),
		"remaining_before": before.RemainingAmount.String(),
		"remaining_after":  after.RemainingAmount.String(),
	}).Warn("administrative balance correction applied")
	return after, nil
}

// ─── Payments ───────────────────────────────────────────────────────────────

// PaymentResult bundles the stored payment with the account state it
// produced.
type PaymentResult struct {
	Payment *domain.CreditPayment `json:"payment"`
	Account *domain.CreditAccount `json:"account"`
}

// RecordPayment applies a payment to an account: the payment row and the
// balance change land in one transaction or not at all. Closed accounts
// accept no payments. There is no minimum beyond amount > 0; overpayment
// follows the configured policy.
func (s *Service) RecordPayment(ctx context.Context, accountID string, amount domain.Money, method, notes string) (*PaymentResult, error) {
	if !amount.IsPositive() {
		return nil, domain.Validationf("amount", "must be greater than zero, got %s", amount)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		acct, err := s.db.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if acct.Status == domain.StatusClosed {
			return nil, domain.ErrAccountClosed
		}
		if s.policy.Overpayment == OverpaymentReject {
			if limit := acct.RemainingAmount.Add(s.policy.Tolerance); amount.Cmp(limit) > 0 {
				return nil, fmt.Errorf("%w: %s against %s remaining", domain.ErrOverpayment, amount, acct.RemainingAmount)
			}
		}

		payment, updated, err := s.db.RecordPaymentTx(ctx, acct, amount, method, notes)
		if errors.Is(err, domain.ErrStaleAccount) {
			observability.VersionConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}

		observability.PaymentsRecorded.WithLabelValues(method).Inc()
		if updated.Status == domain.StatusClosed {
			observability.AccountsClosed.Inc()
		}
		s.log.WithFields(logrus.Fields{
			"account":   updated.AccountNumber,
			"payment":   payment.ID,
			"amount":    amount.String(),
			"method":    method,
			"remaining": updated.RemainingAmount.String(),
			"status":    string(updated.Status),
		}).Info("payment recorded")
		return &PaymentResult{Payment: payment, Account: updated}, nil
	}
	return nil, domain.ErrStaleAccount
}

// ReversePayment undoes a previously recorded payment: the payment row is
// deleted and its amount subtracted from the owning account in one
// transaction, reopening the account if the balance becomes positive
// again.
func (s *Service) ReversePayment(ctx context.Context, paymentID string) (*domain.CreditAccount, error) {
	payment, err := s.db.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		acct, err := s.db.GetAccount(ctx, payment.CreditAccountID)
		if err != nil {
			return nil, err
		}
		wasClosed := acct.Status == domain.StatusClosed

		updated, err := s.db.ReversePaymentTx(ctx, acct, payment)
		if errors.Is(err, domain.ErrStaleAccount) {
			observability.VersionConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}

		observability.PaymentsReversed.Inc()
		if wasClosed && updated.Status == domain.StatusActive {
			observability.AccountsReopened.Inc()
		}
		s.log.WithFields(logrus.Fields{
			"account":   updated.AccountNumber,
			"payment":   payment.ID,
			"amount":    payment.Amount.String(),
			"remaining": updated.RemainingAmount.String(),
			"status":    string(updated.Status),
		}).Info("payment reversed")
		return updated, nil
	}
	return nil, domain.ErrStaleAccount
}

// ListPayments returns an account's payments, oldest first.
func (s *Service) ListPayments(ctx context.Context, accountID string) ([]*domain.CreditPayment, error) {
	return s.db.ListPaymentsByAccount(ctx, accountID)
}

// ─── Reporting ──────────────────────────────────────────────────────────────

// Outstanding sums remaining balances across accounts matching the filter.
func (s *Service) Outstanding(ctx context.Context, filter domain.AccountFilter) (*domain.OutstandingReport, error) {
	report, err := s.db.Outstanding(ctx, filter)
	if err != nil {
		return nil, err
	}
	if (filter == domain.AccountFilter{}) {
		observability.Outstanding.Set(float64(report.Outstanding.Centavos()))
	}
	return report, nil
}
