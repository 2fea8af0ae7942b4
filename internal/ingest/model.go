// Package ingest parses the detection, weather and moon CSV exports into
// immutable in-memory tables.
package ingest

import (
	"time"
)

// Detection is one acoustic detection of a species
type Detection struct {
	Timestamp      time.Time // UTC
	ScientificName string
	Confidence     float64 // expected in [0,1], not validated
}

// Hour returns the UTC hour of day (0-23)
func (d Detection) Hour() int {
	return d.Timestamp.Hour()
}

// Bucket floors the timestamp to the given width.
func (d Detection) Bucket(width time.Duration) time.Time {
	return d.Timestamp.Truncate(width)
}

// Weather is one day of weather observations
type Weather struct {
	Time             time.Time // UTC, daily granularity
	TemperatureMax   float64   // °C
	TemperatureMean  float64   // °C
	TemperatureMin   float64   // °C
	Precipitation    float64   // mm
	WindSpeedMax     float64   // km/h
	DaylightDuration float64   // seconds
}

// DaylightHours converts the daylight duration from seconds to hours
func (w Weather) DaylightHours() float64 {
	return w.DaylightDuration / 3600
}

// Moon is one day of lunar illumination
type Moon struct {
	Date         time.Time // UTC, daily granularity
	Illumination float64   // percent of the visible disk lit, 0-100
	Phase        string    // e.g. "new", "waxing_crescent", "full"
}

// Known phase labels used for chart markers
const (
	PhaseNew  = "new"
	PhaseFull = "full"
)

// Dataset is the immutable snapshot produced by one upload. Callers must
// not modify the slices.
type Dataset struct {
	Detections []Detection
	Weather    []Weather
	Moon       []Moon
	LoadedAt   time.Time
}

// Counts summarises the row counts of a dataset
type Counts struct {
	Detections int `json:"detections" yaml:"detections"`
	Weather    int `json:"weather" yaml:"weather"`
	Moon       int `json:"moon" yaml:"moon"`
}

// Counts returns the number of rows in each table
func (d *Dataset) Counts() Counts {
	return Counts{
		Detections: len(d.Detections),
		Weather:    len(d.Weather),
		Moon:       len(d.Moon),
	}
}

// DetectionRange returns the earliest and latest detection timestamps.
// ok is false when there are no detections.
func (d *Dataset) DetectionRange() (first, last time.Time, ok bool) {
	if len(d.Detections) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = d.Detections[0].Timestamp, d.Detections[0].Timestamp
	for i := range d.Detections {
		ts := d.Detections[i].Timestamp
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	return first, last, true
}
