// Package daemon holds the process-level configuration for the crediário
// server: where it listens, where the ledger lives on disk, the write
// policy, and the reconciliation schedule.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig locates the ledger database on disk.
type StorageConfig struct {
	// DataDir holds crediario.db. Empty means ~/.crediario.
	DataDir string `toml:"data_dir"`
}

// LedgerConfig is the write policy of the ledger.
type LedgerConfig struct {
	// OverpaymentPolicy is "clamp" or "reject".
	OverpaymentPolicy string `toml:"overpayment_policy"`
	// OverpaymentTolerance is the overshoot allowed under "reject", as a
	// decimal amount like "0.50". Ignored under "clamp".
	OverpaymentTolerance string `toml:"overpayment_tolerance"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ReconcileConfig controls the scheduled reconciliation pass.
type ReconcileConfig struct {
	Enabled bool `toml:"enabled"`
	// Schedule is a cron expression. Default: nightly at 03:00.
	Schedule string `toml:"schedule"`
	// Repair makes scheduled passes fix what they find instead of only
	// reporting it.
	Repair bool `toml:"repair"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is trace, debug, info, warn, or error.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8432,
		},
		Storage: StorageConfig{
			DataDir: "",
		},
		Ledger: LedgerConfig{
			OverpaymentPolicy:    "clamp",
			OverpaymentTolerance: "0.00",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
			Repair:   false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error — the defaults stand.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// DataDir resolves the storage directory, defaulting to ~/.crediario.
func (c Config) DataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crediario"
	}
	return filepath.Join(home, ".crediario")
}

// DefaultConfigPath returns ~/.crediario/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".crediario", "config.toml")
	}
	return filepath.Join(home, ".crediario", "config.toml")
}
