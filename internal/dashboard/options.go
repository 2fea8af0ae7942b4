package dashboard

import (
	"time"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
)

// Default presentation values
const (
	DefaultBackground   = "#1e1e2f"
	DefaultForeground   = "#ffffff"
	DefaultTopSpecies   = 20
	DefaultRecentLifers = 5

	chartWidth  = "1200px"
	chartHeight = "420px"
)

// DayLengthSource provides astronomical day lengths in hours. A NaN entry
// means the day length is undefined for that date.
type DayLengthSource interface {
	DayLengths(dates []time.Time) []float64
}

// Options controls how the dashboard is rendered
type Options struct {
	Background   string
	Foreground   string
	Locale       string
	TopSpecies   int
	RecentLifers int

	// DayLength adds an astronomical day-length series to the wind view
	// when set.
	DayLength DayLengthSource

	// Metrics records render operations. Nil disables recording.
	Metrics metrics.Recorder
}

// OptionsFromSettings builds render options from the dashboard settings
func OptionsFromSettings(s *conf.Settings) Options {
	return Options{
		Background:   s.Dashboard.Theme.Background,
		Foreground:   s.Dashboard.Theme.Foreground,
		Locale:       s.Dashboard.Locale,
		TopSpecies:   s.Dashboard.TopSpecies,
		RecentLifers: s.Dashboard.RecentLifers,
	}
}

func (o Options) withDefaults() Options {
	if o.Background == "" {
		o.Background = DefaultBackground
	}
	if o.Foreground == "" {
		o.Foreground = DefaultForeground
	}
	if o.Locale == "" {
		o.Locale = DefaultLocale
	}
	if o.TopSpecies <= 0 {
		o.TopSpecies = DefaultTopSpecies
	}
	if o.RecentLifers <= 0 {
		o.RecentLifers = DefaultRecentLifers
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpRecorder{}
	}
	return o
}

// GetLogger returns the dashboard module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("dashboard")
}
