package pipeline

import (
	"time"

	"github.com/tphakala/birdnet-dashboard/internal/ingest"
)

// Result holds the filtered tables and every aggregate derived from them
type Result struct {
	Filter FilterConfig

	Detections []ingest.Detection
	Weather    []ingest.Weather
	Moon       []ingest.Moon

	SpeciesCounts []SpeciesCount
	Hourly        []HourCount
	Daily         []DailyPoint
	DailyUnique   []DailySpecies
	Lifers        []Lifer
	Quality       Quality
	Metrics       Metrics

	Elapsed time.Duration
}

// Run applies the filter steps in order (dedup, common species, date range,
// species selection, confidence threshold) and computes the aggregates.
// The dataset is never modified.
func Run(ds *ingest.Dataset, cfg FilterConfig) *Result {
	start := time.Now()

	dets := Dedup(ds.Detections, cfg.DedupMode)
	if cfg.CommonSpeciesOnly {
		dets = FilterCommonSpecies(dets)
	}
	dets = FilterDateRange(dets, cfg.StartDate, cfg.EndDate)
	dets = FilterSpecies(dets, cfg.SelectedSpecies)
	dets = FilterConfidence(dets, cfg.ConfidenceThreshold)

	return &Result{
		Filter:        cfg,
		Detections:    dets,
		Weather:       FilterWeather(ds.Weather, cfg.StartDate, cfg.EndDate),
		Moon:          FilterMoon(ds.Moon, cfg.StartDate, cfg.EndDate),
		SpeciesCounts: SpeciesCounts(dets),
		Hourly:        HourlyHistogram(dets),
		Daily:         DailySeries(dets),
		DailyUnique:   DailyUniqueSpecies(dets),
		Lifers:        FirstOccurrences(dets),
		Quality:       ComputeQuality(dets),
		Metrics:       ComputeMetrics(dets),
		Elapsed:       time.Since(start),
	}
}

// TopSpecies returns at most n species counts
func (r *Result) TopSpecies(n int) []SpeciesCount {
	return head(r.SpeciesCounts, n)
}

// RecentLifers returns at most n of the most recent first occurrences
func (r *Result) RecentLifers(n int) []Lifer {
	return head(r.Lifers, n)
}

// NewMoonMarkers returns the filtered moon rows labelled "new"
func (r *Result) NewMoonMarkers() []ingest.Moon {
	return PhaseMarkers(r.Moon, ingest.PhaseNew)
}

// FullMoonMarkers returns the filtered moon rows labelled "full"
func (r *Result) FullMoonMarkers() []ingest.Moon {
	return PhaseMarkers(r.Moon, ingest.PhaseFull)
}

func head[T any](s []T, n int) []T {
	if n < 0 || n >= len(s) {
		return s
	}
	return s[:n]
}
