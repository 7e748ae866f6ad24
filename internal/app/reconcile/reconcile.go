// Package reconcile audits the ledger against its own payment history.
// Stored balances are denormalized — paid_amount should equal the sum of
// the account's payment rows — and a crash, a bad migration, or a manual
// edit can make them disagree. The reconciler finds that drift, and finds
// payment rows whose owning account is gone, and optionally repairs both.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rmachado/crediario/internal/domain"
	"github.com/rmachado/crediario/internal/infra/observability"
	"github.com/rmachado/crediario/internal/infra/sqlite"
)

// Drift describes one account whose stored paid amount disagrees with its
// payment rows.
type Drift struct {
	AccountID     string       `json:"account_id"`
	AccountNumber string       `json:"account_number"`
	StoredPaid    domain.Money `json:"stored_paid"`
	ComputedPaid  domain.Money `json:"computed_paid"`
	Repaired      bool         `json:"repaired"`
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	AccountsChecked int                     `json:"accounts_checked"`
	Drifts          []Drift                 `json:"drifts"`
	Orphans         []*domain.CreditPayment `json:"orphans"`
	OrphansRemoved  int                     `json:"orphans_removed"`
}

// Clean reports whether the pass found nothing wrong.
func (r *Report) Clean() bool {
	return len(r.Drifts) == 0 && len(r.Orphans) == 0
}

// Reconciler audits and optionally repairs the ledger. It carries no
// per-pass state, so one instance serves concurrent callers (the cron
// schedule and on-demand HTTP requests share it).
type Reconciler struct {
	db  *sqlite.DB
	log *logrus.Logger
}

// New creates a reconciler over an open database handle.
func New(db *sqlite.DB, log *logrus.Logger) *Reconciler {
	return &Reconciler{db: db, log: log}
}

// Run executes one reconciliation pass over the whole ledger. With repair
// set, the pass fixes what it finds: drifted accounts are overwritten
// with payment-derived balances and orphaned payment rows are removed.
// An audit-only pass just reports.
//
// An account whose balance was administratively corrected away from its
// payment history shows up as drift on the next pass; a repair run folds
// it back to the payment-derived value. Corrections meant to stick should
// adjust the payment rows, not just the balance.
func (r *Reconciler) Run(ctx context.Context, repair bool) (*Report, error) {
	observability.ReconcileRuns.Inc()

	accounts, err := r.db.ListAccounts(ctx, domain.AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	sums, err := r.db.PaymentSums(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	report := &Report{AccountsChecked: len(accounts)}
	for _, acct := range accounts {
		computed := sums[acct.ID] // zero for accounts with no payments
		if acct.PaidAmount == computed {
			continue
		}
		observability.ReconcileDrift.Inc()
		drift := Drift{
			AccountID:     acct.ID,
			AccountNumber: acct.AccountNumber,
			StoredPaid:    acct.PaidAmount,
			ComputedPaid:  computed,
		}
		r.log.WithFields(logrus.Fields{
			"account":       acct.AccountNumber,
			"stored_paid":   acct.PaidAmount.String(),
			"computed_paid": computed.String(),
		}).Warn("stored balance drifted from payment history")

		if repair {
			if err := r.repairDrift(ctx, acct, computed); err != nil {
				return nil, fmt.Errorf("reconcile: repair %s: %w", acct.AccountNumber, err)
			}
			drift.Repaired = true
		}
		report.Drifts = append(report.Drifts, drift)
	}

	orphans, err := r.db.OrphanPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	report.Orphans = orphans
	for _, p := range orphans {
		observability.ReconcileOrphans.Inc()
		r.log.WithFields(logrus.Fields{
			"payment": p.ID,
			"account": p.CreditAccountID,
			"amount":  p.Amount.String(),
		}).Warn("payment row without an owning account")

		if repair {
			if _, err := r.db.DeletePayment(ctx, p.ID); err != nil {
				return nil, fmt.Errorf("reconcile: remove orphan %s: %w", p.ID, err)
			}
			report.OrphansRemoved++
		}
	}

	if report.Clean() {
		r.log.WithField("accounts", report.AccountsChecked).Debug("reconciliation pass clean")
	}
	return report, nil
}

func (r *Reconciler) repairDrift(ctx context.Context, acct *domain.CreditAccount, computed domain.Money) error {
	paid := computed
	_, err := r.db.OverwriteAccount(ctx, acct.ID, domain.AccountCorrection{PaidAmount: &paid})
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"account":     acct.AccountNumber,
		"paid_before": acct.PaidAmount.String(),
		"paid_after":  computed.String(),
	}).Info("drifted balance repaired from payment history")
	return nil
}
