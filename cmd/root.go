package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-dashboard/cmd/report"
	"github.com/tphakala/birdnet-dashboard/cmd/serve"
	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	var (
		configFile string
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "birdnet-dashboard",
		Short:         "BirdNET detection dashboard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		GetLogger().Warn("failed to bind global flags", logger.Error(err))
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		report.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.LoadFrom(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		*settings = *loaded

		central, err = logger.NewCentralLogger(settings.LoggingConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.SetGlobal(central)

		if err := telemetry.InitSentry(settings, version); err != nil {
			// telemetry is optional
			GetLogger().Warn("error telemetry disabled", logger.Error(err))
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		telemetry.Flush(telemetryFlushTimeout)
		if central != nil {
			return central.Close()
		}
		return nil
	}

	return rootCmd
}

// GetLogger returns the cli module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("cli")
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
