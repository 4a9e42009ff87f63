package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pet-subscription-sync/internal/config"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	cfgPath string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:           "app",
	Short:         "Keeps pet-profile subscriber records in sync with the billing provider",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "enable developer mode (console logs, noop provider allowed)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)
}

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config and builds the root logger.
func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.SetBuildInfo(Version, GitCommit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	return cfg, logger, nil
}
