package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rmachado/crediario/internal/app/reconcile"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("repair", false, "Repair drifted balances and remove orphaned payments")
	reconcileCmd.Flags().Bool("json", false, "Print the full report as JSON")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Audit stored balances against payment history",
	Long: `Run one reconciliation pass over the ledger. Accounts whose
stored paid amount disagrees with the sum of their payment rows are
reported, as are payment rows whose owning account is gone. With
--repair, both are fixed: balances are recomputed from payment history
and orphaned payments are removed.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
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

	rec := reconcile.New(db, log)
	repair, _ := cmd.Flags().GetBool("repair")

	report, err := rec.Run(cmd.Context(), repair)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report, repair)
	return nil
}

func printReport(report *reconcile.Report, repaired bool) {
	fmt.Printf("Checked %d account(s).\n", report.AccountsChecked)
	if report.Clean() {
		fmt.Println("Ledger is clean: balances match payment history.")
		return
	}
	for _, d := range report.Drifts {
		verdict := "DRIFT"
		if d.Repaired {
			verdict = "REPAIRED"
		}
		fmt.Printf("  %-8s %s  stored paid %s, payments sum to %s\n",
			verdict, d.AccountNumber, d.StoredPaid, d.ComputedPaid)
	}
	for _, p := range report.Orphans {
		fmt.Printf("  ORPHAN   payment %s (%s) references missing account %s\n",
			p.ID, p.Amount, p.CreditAccountID)
	}
	if repaired {
		fmt.Printf("Removed %d orphaned payment(s).\n", report.OrphansRemoved)
	} else if !report.Clean() {
		fmt.Println("Run again with --repair to fix.")
	}
}
