package report

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// Range is the inclusive date range of a summary
type Range struct {
	Start pipeline.Date `yaml:"start"`
	End   pipeline.Date `yaml:"end"`
}

// LiferEntry is a first occurrence as shown on the dashboard
type LiferEntry struct {
	ScientificName string `yaml:"scientific_name"`
	FirstSeen      string `yaml:"first_seen"`
}

// Summary is the YAML document written next to the charts
type Summary struct {
	Range         Range                   `yaml:"range"`
	Filter        pipeline.FilterConfig   `yaml:"filter"`
	TotalRecords  int                     `yaml:"total_records"`
	UniqueSpecies int                     `yaml:"unique_species"`
	Quality       pipeline.Quality        `yaml:"quality"`
	TopSpecies    []pipeline.SpeciesCount `yaml:"top_species"`
	RecentLifers  []LiferEntry            `yaml:"recent_lifers"`
	Hourly        []pipeline.HourCount    `yaml:"hourly"`
}

// NewSummary extracts the summary fields from a result
func NewSummary(r *pipeline.Result, topSpecies, recentLifers int) Summary {
	lifers := r.RecentLifers(recentLifers)
	entries := make([]LiferEntry, 0, len(lifers))
	for _, l := range lifers {
		entries = append(entries, LiferEntry{ScientificName: l.ScientificName, FirstSeen: l.Display()})
	}

	return Summary{
		Range:         Range{Start: r.Filter.StartDate, End: r.Filter.EndDate},
		Filter:        r.Filter,
		TotalRecords:  r.Metrics.TotalRecords,
		UniqueSpecies: r.Metrics.UniqueSpecies,
		Quality:       r.Quality,
		TopSpecies:    r.TopSpecies(topSpecies),
		RecentLifers:  entries,
		Hourly:        r.Hourly,
	}
}

// WriteSummary encodes the summary of r as YAML
func WriteSummary(w io.Writer, r *pipeline.Result, topSpecies, recentLifers int) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewSummary(r, topSpecies, recentLifers)); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryRender).
			Context("output", "summary").
			Build()
	}
	if err := enc.Close(); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("output", "summary").
			Build()
	}
	return nil
}
