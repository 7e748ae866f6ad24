package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmachado/crediario/internal/api"
	"github.com/rmachado/crediario/internal/app/ledger"
	"github.com/rmachado/crediario/internal/app/reconcile"
	"github.com/rmachado/crediario/internal/daemon"
	"github.com/rmachado/crediario/internal/domain"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crediário HTTP server",
	Long: `Start the ledger HTTP server. The server exposes the credit
account and payment API under /api/credit, the customer directory under
/api/customers, and (when enabled) Prometheus metrics under /metrics.
A scheduled reconciliation pass audits stored balances against payment
history.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	policy, err := ledgerPolicy(cfg.Ledger)
	if err != nil {
		return err
	}
	svc := ledger.New(db, log, policy)
	rec := reconcile.New(db, log)

	srv := api.NewServer(svc, db)
	srv.SetReconciler(rec)
	srv.SetLogger(log)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	var scheduler *cron.Cron
	if cfg.Reconcile.Enabled {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Reconcile.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := rec.Run(ctx, cfg.Reconcile.Repair); err != nil {
				log.WithError(err).Error("scheduled reconciliation failed")
			}
		})
		if err != nil {
			return fmt.Errorf("reconcile schedule %q: %w", cfg.Reconcile.Schedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    httpSrv.Addr,
			"data":    cfg.DataDir(),
			"metrics": cfg.Metrics.Enabled,
		}).Info("crediário server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// ledgerPolicy translates the config section into the service policy.
func ledgerPolicy(cfg daemon.LedgerConfig) (ledger.Policy, error) {
	var policy ledger.Policy
	switch cfg.OverpaymentPolicy {
	case "", "clamp":
		policy.Overpayment = ledger.OverpaymentClamp
	case "reject":
		policy.Overpayment = ledger.OverpaymentReject
	default:
		return policy, fmt.Errorf("unknown overpayment_policy %q (want clamp or reject)", cfg.OverpaymentPolicy)
	}
	if cfg.OverpaymentTolerance != "" {
		tol, err := domain.ParseMoney(cfg.OverpaymentTolerance)
		if err != nil {
			return policy, fmt.Errorf("overpayment_tolerance: %w", err)
		}
		policy.Tolerance = tol
	}
	return policy, nil
}
