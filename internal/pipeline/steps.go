package pipeline

import (
	"cmp"
	"slices"

	"github.com/tphakala/birdnet-dashboard/internal/ingest"
)

type bucketKey struct {
	species string
	bucket  int64
}

// Dedup keeps, for every (species, floor(timestamp, width)) group, the
// record with the highest confidence; ties go to the earliest row. Survivors
// keep their original relative order. DedupNone returns a copy of the input.
func Dedup(detections []ingest.Detection, mode DedupMode) []ingest.Detection {
	width := mode.Width()
	if width == 0 {
		return slices.Clone(detections)
	}

	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(detections[b].Confidence, detections[a].Confidence)
	})

	seen := make(map[bucketKey]struct{}, len(detections))
	keep := make([]bool, len(detections))
	for _, i := range order {
		d := &detections[i]
		key := bucketKey{species: d.ScientificName, bucket: d.Bucket(width).Unix()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep[i] = true
	}

	out := make([]ingest.Detection, 0, len(seen))
	for i, k := range keep {
		if k {
			out = append(out, detections[i])
		}
	}
	return out
}

// FilterCommonSpecies keeps species with at least CommonSpeciesMinCount
// records in the given set.
func FilterCommonSpecies(detections []ingest.Detection) []ingest.Detection {
	counts := countBySpecies(detections)
	return filterDetections(detections, func(d *ingest.Detection) bool {
		return counts[d.ScientificName] >= CommonSpeciesMinCount
	})
}

// FilterDateRange keeps detections whose UTC date lies in [start, end]
func FilterDateRange(detections []ingest.Detection, start, end Date) []ingest.Detection {
	return filterDetections(detections, func(d *ingest.Detection) bool {
		return DateOf(d.Timestamp).Within(start, end)
	})
}

// FilterSpecies keeps members of species; an empty selection keeps everything.
func FilterSpecies(detections []ingest.Detection, species []string) []ingest.Detection {
	set := FilterConfig{SelectedSpecies: species}.speciesSet()
	if set == nil {
		return slices.Clone(detections)
	}
	return filterDetections(detections, func(d *ingest.Detection) bool {
		_, ok := set[d.ScientificName]
		return ok
	})
}

// FilterConfidence keeps confidence >= threshold. A threshold of zero or
// below is inactive.
func FilterConfidence(detections []ingest.Detection, threshold float64) []ingest.Detection {
	if threshold <= 0 {
		return slices.Clone(detections)
	}
	return filterDetections(detections, func(d *ingest.Detection) bool {
		return d.Confidence >= threshold
	})
}

// FilterWeather keeps weather days inside [start, end]
func FilterWeather(rows []ingest.Weather, start, end Date) []ingest.Weather {
	out := make([]ingest.Weather, 0, len(rows))
	for i := range rows {
		if DateOf(rows[i].Time).Within(start, end) {
			out = append(out, rows[i])
		}
	}
	return out
}

// FilterMoon keeps moon days inside [start, end]
func FilterMoon(rows []ingest.Moon, start, end Date) []ingest.Moon {
	out := make([]ingest.Moon, 0, len(rows))
	for i := range rows {
		if DateOf(rows[i].Date).Within(start, end) {
			out = append(out, rows[i])
		}
	}
	return out
}

// PhaseMarkers returns the moon rows carrying the given phase label
func PhaseMarkers(rows []ingest.Moon, phase string) []ingest.Moon {
	var out []ingest.Moon
	for i := range rows {
		if rows[i].Phase == phase {
			out = append(out, rows[i])
		}
	}
	return out
}

func filterDetections(in []ingest.Detection, keep func(*ingest.Detection) bool) []ingest.Detection {
	out := make([]ingest.Detection, 0, len(in))
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

func countBySpecies(detections []ingest.Detection) map[string]int {
	counts := make(map[string]int)
	for i := range detections {
		counts[detections[i].ScientificName]++
	}
	return counts
}
