package pipeline

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/birdnet-dashboard/internal/ingest"
)

// LiferDisplayFormat is how first-occurrence timestamps are shown (dd/mm/YYYY HH:MM)
const LiferDisplayFormat = "02/01/2006 15:04"

// HighConfidenceCutoff is the strict lower bound for a high-confidence record
const HighConfidenceCutoff = 0.8

// SpeciesCount is the number of records of one species
type SpeciesCount struct {
	ScientificName string `json:"scientific_name" yaml:"scientific_name"`
	Count          int    `json:"count" yaml:"count"`
}

// HourCount is the number of records in one UTC hour of day
type HourCount struct {
	Hour  int `json:"hour" yaml:"hour"`
	Count int `json:"count" yaml:"count"`
}

// DailyPoint is the record count and mean confidence of one day
type DailyPoint struct {
	Date           Date    `json:"date" yaml:"date"`
	Count          int     `json:"count" yaml:"count"`
	MeanConfidence float64 `json:"mean_confidence" yaml:"mean_confidence"`
}

// DailySpecies is the number of distinct species seen on one day
type DailySpecies struct {
	Date    Date `json:"date" yaml:"date"`
	Species int  `json:"species" yaml:"species"`
}

// Lifer is the first time a species appears in the filtered set
type Lifer struct {
	ScientificName string    `json:"scientific_name" yaml:"scientific_name"`
	FirstSeen      time.Time `json:"first_seen" yaml:"first_seen"`
}

// Display formats FirstSeen with LiferDisplayFormat
func (l Lifer) Display() string {
	return l.FirstSeen.UTC().Format(LiferDisplayFormat)
}

// Quality summarises detection confidence. MeanConfidence and
// HighConfidenceShare are NaN for an empty set.
type Quality struct {
	MeanConfidence      float64
	Score               int
	HighConfidenceShare float64
}

// MarshalJSON encodes NaN values as null
func (q Quality) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MeanConfidence      *float64 `json:"mean_confidence"`
		Score               int      `json:"score"`
		HighConfidenceShare *float64 `json:"high_confidence_share"`
	}{
		MeanConfidence:      finiteOrNil(q.MeanConfidence),
		Score:               q.Score,
		HighConfidenceShare: finiteOrNil(q.HighConfidenceShare),
	})
}

// MarshalYAML mirrors MarshalJSON
func (q Quality) MarshalYAML() (any, error) {
	return map[string]any{
		"mean_confidence":       finiteOrNil(q.MeanConfidence),
		"score":                 q.Score,
		"high_confidence_share": finiteOrNil(q.HighConfidenceShare),
	}, nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Metrics are the headline counts of the filtered set
type Metrics struct {
	UniqueSpecies int `json:"unique_species" yaml:"unique_species"`
	TotalRecords  int `json:"total_records" yaml:"total_records"`
}

// SpeciesCounts counts records per species, highest first. Equal counts are
// ordered by name.
func SpeciesCounts(detections []ingest.Detection) []SpeciesCount {
	counts := countBySpecies(detections)
	out := make([]SpeciesCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, SpeciesCount{ScientificName: name, Count: n})
	}
	slices.SortFunc(out, func(a, b SpeciesCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.ScientificName, b.ScientificName)
	})
	return out
}

// HourlyHistogram always returns 24 entries, hours 0-23
func HourlyHistogram(detections []ingest.Detection) []HourCount {
	out := make([]HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for i := range detections {
		out[detections[i].Hour()].Count++
	}
	return out
}

// DailySeries returns per-day record counts and mean confidence in date order
func DailySeries(detections []ingest.Detection) []DailyPoint {
	type acc struct {
		n   int
		sum float64
	}
	byDay := make(map[Date]*acc)
	for i := range detections {
		day := DateOf(detections[i].Timestamp)
		a := byDay[day]
		if a == nil {
			a = &acc{}
			byDay[day] = a
		}
		a.n++
		a.sum += detections[i].Confidence
	}

	out := make([]DailyPoint, 0, len(byDay))
	for day, a := range byDay {
		out = append(out, DailyPoint{Date: day, Count: a.n, MeanConfidence: a.sum / float64(a.n)})
	}
	slices.SortFunc(out, func(a, b DailyPoint) int { return a.Date.Compare(b.Date) })
	return out
}

// DailyUniqueSpecies returns the number of distinct species per day in date order
func DailyUniqueSpecies(detections []ingest.Detection) []DailySpecies {
	byDay := make(map[Date]map[string]struct{})
	for i := range detections {
		day := DateOf(detections[i].Timestamp)
		set := byDay[day]
		if set == nil {
			set = make(map[string]struct{})
			byDay[day] = set
		}
		set[detections[i].ScientificName] = struct{}{}
	}

	out := make([]DailySpecies, 0, len(byDay))
	for day, set := range byDay {
		out = append(out, DailySpecies{Date: day, Species: len(set)})
	}
	slices.SortFunc(out, func(a, b DailySpecies) int { return a.Date.Compare(b.Date) })
	return out
}

// FirstOccurrences returns the earliest timestamp of every species, most
// recent first.
func FirstOccurrences(detections []ingest.Detection) []Lifer {
	first := make(map[string]time.Time)
	for i := range detections {
		d := &detections[i]
		if t, ok := first[d.ScientificName]; !ok || d.Timestamp.Before(t) {
			first[d.ScientificName] = d.Timestamp
		}
	}

	out := make([]Lifer, 0, len(first))
	for name, t := range first {
		out = append(out, Lifer{ScientificName: name, FirstSeen: t})
	}
	slices.SortFunc(out, func(a, b Lifer) int {
		if c := b.FirstSeen.Compare(a.FirstSeen); c != 0 {
			return c
		}
		return strings.Compare(a.ScientificName, b.ScientificName)
	})
	return out
}

// ComputeQuality derives the confidence summary. An empty set yields NaN
// mean and share with a zero score.
func ComputeQuality(detections []ingest.Detection) Quality {
	if len(detections) == 0 {
		return Quality{MeanConfidence: math.NaN(), HighConfidenceShare: math.NaN()}
	}
	var sum float64
	var high int
	for i := range detections {
		c := detections[i].Confidence
		sum += c
		if c > HighConfidenceCutoff {
			high++
		}
	}
	n := float64(len(detections))
	mean := sum / n
	return Quality{
		MeanConfidence:      mean,
		Score:               int(mean * 100),
		HighConfidenceShare: float64(high) / n,
	}
}

// ComputeMetrics counts records and distinct species
func ComputeMetrics(detections []ingest.Detection) Metrics {
	return Metrics{
		UniqueSpecies: len(countBySpecies(detections)),
		TotalRecords:  len(detections),
	}
}
