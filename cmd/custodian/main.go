package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
)

// version is set via ldflags at build time
var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "custodian",
	Short:         "Tamper-evident evidence intake and offline forensic analysis",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file, exiting on failure, and configures
// logging from it.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	return cfg
}

// openStore opens the configured case store. The returned close function is
// never nil.
func openStore(cfg *config.Config) (types.CaseStore, func() error, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := state.OpenSQL(filepath.Join(cfg.DataDir, "cases.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreJSON, "":
		return state.NewCaseStore(cfg.DataDir), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want %s or %s)", cfg.Store, config.StoreJSON, config.StoreSQLite)
	}
}

func auditLog(cfg *config.Config) *state.AuditLog {
	return state.NewAuditLog(filepath.Join(cfg.DataDir, "audits.json"))
}

// withStore runs fn against the configured store and closes it afterwards.
func withStore(fn func(cfg *config.Config, store types.CaseStore) error) error {
	cfg := loadConfig()
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(cfg, store)
}
