// Package report exports a filtered dataset as static files.
package report

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/dashboard"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
	reportpkg "github.com/tphakala/birdnet-dashboard/internal/report"
	"github.com/tphakala/birdnet-dashboard/internal/suncalc"
)

// Flags holds the report command line options
type Flags struct {
	Paths     ingest.Paths
	From      string
	To        string
	Preset    string
	Dedup     string
	Common    bool
	Species   []string
	Threshold float64
	OutDir    string
	View      string
}

// Command creates the report command
func Command(settings *conf.Settings) *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the dashboard, PNG charts and a YAML summary to a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, &flags)
		},
	}

	setupFlags(cmd, &flags)

	return cmd
}

func setupFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().StringVar(&f.Paths.Detections, "detections", "", "Detections CSV file")
	cmd.Flags().StringVar(&f.Paths.Weather, "weather", "", "Daily weather CSV file")
	cmd.Flags().StringVar(&f.Paths.Moon, "moon", "", "Moon phase CSV file")
	cmd.Flags().StringVar(&f.From, "from", "", "First date to include (YYYY-MM-DD), default: first detection")
	cmd.Flags().StringVar(&f.To, "to", "", "Last date to include (YYYY-MM-DD), default: last detection")
	cmd.Flags().StringVar(&f.Preset, "preset", "", "Date preset: all, last_day, last_week or last_month")
	cmd.Flags().StringVar(&f.Dedup, "dedup", string(pipeline.DedupNone), "Deduplication bucket: none, 1min or 10min")
	cmd.Flags().BoolVar(&f.Common, "common", false, "Only species with enough raw records")
	cmd.Flags().StringSliceVar(&f.Species, "species", nil, "Scientific names to include (repeatable)")
	cmd.Flags().Float64Var(&f.Threshold, "threshold", 0, "Minimum confidence between 0 and 1, 0 disables")
	cmd.Flags().StringVarP(&f.OutDir, "out", "o", "dashboard-report", "Output directory")
	cmd.Flags().StringVar(&f.View, "view", "", "Weather view: temperature, precipitation or wind")

	for _, name := range []string{"detections", "weather", "moon"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func run(cmd *cobra.Command, settings *conf.Settings, f *Flags) error {
	view, err := dashboard.ParseWeatherView(cmp.Or(f.View, settings.Dashboard.WeatherView))
	if err != nil {
		return err
	}

	ds, err := ingest.LoadFiles(cmd.Context(), f.Paths)
	if err != nil {
		return err
	}

	cfg, err := buildFilter(ds, f)
	if err != nil {
		return err
	}

	result := pipeline.Run(ds, cfg)

	opts := dashboard.OptionsFromSettings(settings)
	if settings.Location.IsSet() {
		opts.DayLength = suncalc.NewSunCalc(settings.Location.Latitude, settings.Location.Longitude)
	}

	w, err := reportpkg.NewWriter(f.OutDir, reportpkg.Options{
		Dashboard:    opts,
		WeatherView:  view,
		TopSpecies:   settings.Dashboard.TopSpecies,
		RecentLifers: settings.Dashboard.RecentLifers,
	})
	if err != nil {
		return err
	}
	written, err := w.WriteAll(result)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d records, %d species, %s to %s: wrote %d files to %s\n",
		result.Metrics.TotalRecords, result.Metrics.UniqueSpecies,
		cfg.StartDate, cfg.EndDate, len(written), f.OutDir)
	return nil
}

// buildFilter turns the flags into a validated filter. A preset wins over
// explicit dates.
func buildFilter(ds *ingest.Dataset, f *Flags) (pipeline.FilterConfig, error) {
	start, end, ok := pipeline.DefaultRange(ds)
	if !ok {
		return pipeline.FilterConfig{}, fmt.Errorf("%s contains no detections", f.Paths.Detections)
	}

	if f.From != "" {
		d, err := pipeline.ParseDate(f.From)
		if err != nil {
			return pipeline.FilterConfig{}, fmt.Errorf("invalid --from: %w", err)
		}
		start = d
	}
	if f.To != "" {
		d, err := pipeline.ParseDate(f.To)
		if err != nil {
			return pipeline.FilterConfig{}, fmt.Errorf("invalid --to: %w", err)
		}
		end = d
	}

	cfg := pipeline.NewFilterConfig(start, end)
	if f.Preset != "" {
		var err error
		if cfg, err = pipeline.ApplyPreset(ds, cfg, pipeline.Preset(f.Preset)); err != nil {
			return cfg, err
		}
	}

	mode, err := pipeline.ParseDedupMode(f.Dedup)
	if err != nil {
		return cfg, err
	}
	cfg.DedupMode = mode
	cfg.CommonSpeciesOnly = f.Common
	cfg.ConfidenceThreshold = f.Threshold
	cfg = cfg.WithSpecies(f.Species...)

	return cfg, cfg.Validate()
}
