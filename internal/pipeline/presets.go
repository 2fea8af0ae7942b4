package pipeline

import (
	"slices"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
)

// Preset names a quick date range relative to the newest detection
type Preset string

const (
	PresetAll       Preset = "all"
	PresetLastDay   Preset = "last_day"
	PresetLastWeek  Preset = "last_week"
	PresetLastMonth Preset = "last_month"
)

// Presets lists the known presets in display order
var Presets = []Preset{PresetAll, PresetLastDay, PresetLastWeek, PresetLastMonth}

var presetDays = map[Preset]int{
	PresetLastDay:   1,
	PresetLastWeek:  7,
	PresetLastMonth: 30,
}

// DefaultRange returns [first, last] detection dates. ok is false for a
// dataset without detections.
func DefaultRange(ds *ingest.Dataset) (start, end Date, ok bool) {
	first, last, ok := ds.DetectionRange()
	if !ok {
		return Date{}, Date{}, false
	}
	return DateOf(first), DateOf(last), true
}

// ApplyPreset returns cfg with the preset's date range, clamped to the first
// detection date. All other options are kept.
func ApplyPreset(ds *ingest.Dataset, cfg FilterConfig, p Preset) (FilterConfig, error) {
	minDate, maxDate, ok := DefaultRange(ds)
	if !ok {
		return cfg, errors.Newf("dataset has no detections").
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}

	if p == PresetAll {
		return cfg.WithRange(minDate, maxDate), nil
	}
	days, known := presetDays[p]
	if !known {
		return cfg, errors.Newf("unknown preset %q", string(p)).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Context("preset", string(p)).
			Build()
	}
	start := maxDate.AddDays(-days)
	if start.Before(minDate) {
		start = minDate
	}
	return cfg.WithRange(start, maxDate), nil
}

// SpeciesOptions lists the selectable species of the raw dataset in
// alphabetical order. With commonOnly set, only species with at least
// CommonSpeciesMinCount raw records are offered.
func SpeciesOptions(ds *ingest.Dataset, commonOnly bool) []string {
	counts := countBySpecies(ds.Detections)
	out := make([]string, 0, len(counts))
	for name, n := range counts {
		if commonOnly && n < CommonSpeciesMinCount {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
