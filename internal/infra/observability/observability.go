// Package observability holds the Prometheus metrics for the crediário
// ledger. Metric variables are package-level promauto registrations; the
// HTTP server exposes them on /metrics when enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// AccountsOpened counts credit accounts opened.
var AccountsOpened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "accounts_opened_total",
	Help:      "Total credit accounts opened.",
})

// AccountsClosed counts accounts that reached a zero balance.
var AccountsClosed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "accounts_closed_total",
	Help:      "Total accounts closed by reaching a zero remaining balance.",
})

// AccountsReopened counts closed accounts reopened by a payment reversal.
var AccountsReopened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "accounts_reopened_total",
	Help:      "Total closed accounts reopened by a payment reversal.",
})

// AccountsDeleted counts cascade deletions.
var AccountsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "accounts_deleted_total",
	Help:      "Total accounts deleted together with their payments.",
})

// PaymentsRecorded counts payments applied, labeled by payment method.
var PaymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "payments_recorded_total",
	Help:      "Total payments recorded, by payment method.",
}, []string{"method"})

// PaymentsReversed counts payment reversals.
var PaymentsReversed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "payments_reversed_total",
	Help:      "Total payments reversed.",
})

// VersionConflicts counts optimistic-concurrency conflicts that forced a
// retry of a balance mutation.
var VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "version_conflicts_total",
	Help:      "Total balance writes retried after losing a version check.",
})

// Corrections counts administrative overwrites of account balances.
var Corrections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "corrections_total",
	Help:      "Total administrative balance corrections applied.",
})

// Outstanding tracks the most recently reported total outstanding balance
// in centavos.
var Outstanding = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crediario",
	Subsystem: "ledger",
	Name:      "outstanding_centavos",
	Help:      "Total outstanding balance across all accounts, in centavos, as of the last report.",
})

// ─── Reconciliation Metrics ─────────────────────────────────────────────────

// ReconcileRuns counts reconciliation passes.
var ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "reconcile",
	Name:      "runs_total",
	Help:      "Total reconciliation passes executed.",
})

// ReconcileDrift counts accounts found with a paid amount that disagrees
// with their payment rows.
var ReconcileDrift = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "reconcile",
	Name:      "drift_accounts_total",
	Help:      "Total accounts found with stored balances drifted from payment history.",
})

// ReconcileOrphans counts orphaned payment rows found (owning account
// missing).
var ReconcileOrphans = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crediario",
	Subsystem: "reconcile",
	Name:      "orphan_payments_total",
	Help:      "Total payment rows found without an owning account.",
})
