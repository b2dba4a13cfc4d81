package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dwelo-bridge/internal/adapters/output/persistence"
	"dwelo-bridge/internal/domain/model"
	"dwelo-bridge/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dwelo-bridge",
	Short: "Expose Dwelo devices to HomeKit and Hue clients",
	Long: `dwelo-bridge discovers the devices on a Dwelo gateway and exposes them
as HomeKit accessories and as emulated Hue lights. Commands are sent to the
Dwelo cloud and confirmed by polling the gateway status.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (env: DWELO_BRIDGE_CONFIG, default: config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// Execute runs the root command.
func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("dwelo-bridge %s\n", version))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if v := os.Getenv("DWELO_BRIDGE_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// setup loads the configuration and installs the process logger.
func setup() (*model.Config, *slog.Logger, error) {
	repo := persistence.NewYAMLConfigRepository(resolveConfigPath())
	cfg, err := repo.Get(rootCmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}
