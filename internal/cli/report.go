package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rmachado/crediario/internal/domain"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("status", "", "Only count accounts with this status (active or closed)")
	reportCmd.Flags().String("customer", "", "Only count accounts of this customer ID")
	reportCmd.Flags().Bool("json", false, "Print the report as JSON")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the outstanding balance report",
	Long: `Summarize the ledger: total credit extended, total paid, total
still outstanding, and how many accounts are active versus closed.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := domain.AccountFilter{}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		status := domain.AccountStatus(v)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q (want active or closed)", v)
		}
		filter.Status = status
	}
	filter.CustomerID, _ = cmd.Flags().GetString("customer")

	report, err := db.Outstanding(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Credit extended:  %s\n", report.TotalExtended)
	fmt.Printf("Paid so far:      %s\n", report.TotalPaid)
	fmt.Printf("Outstanding:      %s\n", report.Outstanding)
	fmt.Printf("Accounts:         %d active, %d closed\n", report.ActiveAccounts, report.ClosedAccounts)
	return nil
}
