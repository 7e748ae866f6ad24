// Package cli implements the crediario command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmachado/crediario/internal/daemon"
	"github.com/rmachado/crediario/internal/infra/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "crediario",
	Short: "Credit account ledger for the store crediário",
	Long: `crediario tracks the store's informal credit: who bought on
credit, how much they still owe, and every payment against it. It runs
as an HTTP server (crediario serve) and offers one-off reporting and
reconciliation commands against the same ledger database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.toml (default ~/.crediario/config.toml)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config, or the default path.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return daemon.Load(path)
}

// newLogger builds the process logger from config.
func newLogger(cfg daemon.LogConfig) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// openLedger opens the ledger database from config.
func openLedger(cfg daemon.Config) (*sqlite.DB, error) {
	db, err := sqlite.Open(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", cfg.DataDir(), err)
	}
	return db, nil
}
