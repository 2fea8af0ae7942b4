// Package pipeline implements the filter-and-aggregate pipeline over an
// immutable ingest.Dataset. Every function here is pure: inputs are never
// modified and each call allocates its own outputs.
package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

// CommonSpeciesMinCount is the minimum number of records a species needs to
// pass the common-species filter.
const CommonSpeciesMinCount = 100

// DedupMode selects the time bucket used for de-duplication
type DedupMode string

const (
	DedupNone      DedupMode = "none"
	DedupOneMinute DedupMode = "1min"
	DedupTenMinute DedupMode = "10min"
)

// Width returns the bucket width, zero for DedupNone
func (m DedupMode) Width() time.Duration {
	switch m {
	case DedupOneMinute:
		return time.Minute
	case DedupTenMinute:
		return 10 * time.Minute
	default:
		return 0
	}
}

// ParseDedupMode accepts "none", "1min" and "10min". An empty string means none.
func ParseDedupMode(s string) (DedupMode, error) {
	switch DedupMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupNone:
		return DedupNone, nil
	case DedupOneMinute:
		return DedupOneMinute, nil
	case DedupTenMinute:
		return DedupTenMinute, nil
	}
	return "", errors.Newf("unknown dedup mode %q", s).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Context("dedup_mode", s).
		Build()
}

// DedupModeFromFlags maps the two dedup checkboxes to a mode. When both are
// set the 1-minute bucket wins.
func DedupModeFromFlags(oneMinute, tenMinute bool) DedupMode {
	switch {
	case oneMinute:
		return DedupOneMinute
	case tenMinute:
		return DedupTenMinute
	default:
		return DedupNone
	}
}

// FilterConfig is the immutable filter state passed to Run. Use the With*
// methods to derive modified copies.
type FilterConfig struct {
	StartDate           Date      `json:"start_date" yaml:"start_date"`
	EndDate             Date      `json:"end_date" yaml:"end_date"`
	DedupMode           DedupMode `json:"dedup_mode" yaml:"dedup_mode"`
	CommonSpeciesOnly   bool      `json:"common_species_only" yaml:"common_species_only"`
	SelectedSpecies     []string  `json:"selected_species" yaml:"selected_species"`
	ConfidenceThreshold float64   `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// NewFilterConfig returns a filter over [start, end] with every other
// option inactive.
func NewFilterConfig(start, end Date) FilterConfig {
	return FilterConfig{
		StartDate:       start,
		EndDate:         end,
		DedupMode:       DedupNone,
		SelectedSpecies: []string{},
	}
}

// WithRange returns a copy with a new date range
func (f FilterConfig) WithRange(start, end Date) FilterConfig {
	f.StartDate, f.EndDate = start, end
	f.SelectedSpecies = slices.Clone(f.SelectedSpecies)
	return f
}

// WithSpecies returns a copy selecting the given species. Duplicates and
// blanks are dropped and the result is sorted.
func (f FilterConfig) WithSpecies(names ...string) FilterConfig {
	set := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set = append(set, n)
		}
	}
	slices.Sort(set)
	f.SelectedSpecies = slices.Compact(set)
	return f
}

// Validate checks the value ranges a caller can get wrong. It does not
// check the range against a dataset.
func (f FilterConfig) Validate() error {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return filterError("start_date and end_date are required", "range", "")
	}
	if f.StartDate.After(f.EndDate) {
		return filterError(
			fmt.Sprintf("start_date %s is after end_date %s", f.StartDate, f.EndDate),
			"range", f.StartDate.String())
	}
	if f.ConfidenceThreshold < 0 || f.ConfidenceThreshold > 1 {
		return filterError(
			fmt.Sprintf("confidence_threshold %.3f outside [0,1]", f.ConfidenceThreshold),
			"confidence_threshold", f.ConfidenceThreshold)
	}
	if _, err := ParseDedupMode(string(f.DedupMode)); err != nil {
		return err
	}
	return nil
}

func filterError(msg, field string, value any) error {
	return errors.Newf("%s", msg).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

// speciesSet returns nil when no species are selected
func (f FilterConfig) speciesSet() map[string]struct{} {
	if len(f.SelectedSpecies) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(f.SelectedSpecies))
	for _, s := range f.SelectedSpecies {
		set[s] = struct{}{}
	}
	return set
}
