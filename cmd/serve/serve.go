// Package serve runs the dashboard HTTP server.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-dashboard/internal/api"
	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/observability"
)

// Command creates the serve command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Long:  "Start the HTTP API. Datasets are uploaded as three CSV files and kept in memory per session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	if err := saveConfig(cmd, settings); err != nil {
		return err
	}

	var opts []api.ServerOption
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		opts = append(opts, api.WithMetrics(m))
	}

	server, err := api.New(settings, opts...)
	if err != nil {
		return err
	}
	return server.Start(cmd.Context())
}

// saveConfig persists the effective settings, flag overrides included, when
// --save-config is set.
func saveConfig(cmd *cobra.Command, settings *conf.Settings) error {
	save, err := cmd.Flags().GetBool("save-config")
	if err != nil || !save {
		return err
	}
	path, err := conf.SaveSettings(settings)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "settings saved to %s\n", path)
	return nil
}

// setupFlags binds listener flags onto the webserver settings keys
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("host", "", "Listen address")
	cmd.Flags().StringP("port", "p", "8080", "Listen port")
	cmd.Flags().Bool("save-config", false, "Write the effective settings back to the config file before serving")

	if err := viper.BindPFlag("webserver.host", cmd.Flags().Lookup("host")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
