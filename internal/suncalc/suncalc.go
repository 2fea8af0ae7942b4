// Package suncalc computes sun events and astronomical day length for the
// station location, used to compare against the weather export's daylight.
package suncalc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
)

// SunEventTimes holds the sun event times of one UTC date
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// DayLength returns sunset minus sunrise
func (s SunEventTimes) DayLength() time.Duration {
	return s.Sunset.Sub(s.Sunrise)
}

// cacheEntry holds the cached sun event times for a given date
type cacheEntry struct {
	times SunEventTimes
	date  time.Time
}

// SunCalc handles caching and calculation of sun event times
type SunCalc struct {
	cache    map[string]cacheEntry // keyed by YYYY-MM-DD
	lock     sync.RWMutex
	observer astral.Observer
	recorder metrics.Recorder
}

// cacheSizeGauge is implemented by recorders that track the cache size
type cacheSizeGauge interface {
	UpdateCacheSize(size int)
}

// NewSunCalc creates a new SunCalc instance
func NewSunCalc(latitude, longitude float64) *SunCalc {
	return &SunCalc{
		cache:    make(map[string]cacheEntry),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		recorder: metrics.NoOpRecorder{},
	}
}

// SetMetrics routes calculation metrics to r
func (sc *SunCalc) SetMetrics(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOpRecorder{}
	}
	sc.recorder = r
}

// GetSunEventTimes returns the sun event times for the UTC date of date,
// using the cache when available.
func (sc *SunCalc) GetSunEventTimes(date time.Time) (SunEventTimes, error) {
	y, m, d := date.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dateKey := day.Format("2006-01-02")

	sc.lock.RLock()
	entry, exists := sc.cache[dateKey]
	sc.lock.RUnlock()

	if exists && entry.date.Equal(day) {
		return entry.times, nil
	}

	start := time.Now()
	times, err := sc.calculateSunEventTimes(day)
	sc.recorder.RecordDuration(metrics.OpDayLength, time.Since(start).Seconds())
	if err != nil {
		sc.recorder.RecordOperation(metrics.OpDayLength, metrics.StatusError)
		sc.recorder.RecordError(metrics.OpDayLength, "calculation")
		return SunEventTimes{}, errors.New(err).
			Component("suncalc").
			Category(errors.CategoryProcessing).
			Context("date", dateKey).
			Context("latitude", sc.observer.Latitude).
			Context("longitude", sc.observer.Longitude).
			Build()
	}
	sc.recorder.RecordOperation(metrics.OpDayLength, metrics.StatusSuccess)

	sc.lock.Lock()
	sc.cache[dateKey] = cacheEntry{times: times, date: day}
	size := len(sc.cache)
	sc.lock.Unlock()

	if g, ok := sc.recorder.(cacheSizeGauge); ok {
		g.UpdateCacheSize(size)
	}

	return times, nil
}

// calculateSunEventTimes calculates the sun event times for a given date
func (sc *SunCalc) calculateSunEventTimes(date time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}

	sunrise, err := astral.Sunrise(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	sunset, err := astral.Sunset(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	civilDusk, err := astral.Dusk(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn.UTC(),
		Sunrise:   sunrise.UTC(),
		Sunset:    sunset.UTC(),
		CivilDusk: civilDusk.UTC(),
	}, nil
}

// DayLengthHours returns the astronomical day length of date in hours
func (sc *SunCalc) DayLengthHours(date time.Time) (float64, error) {
	times, err := sc.GetSunEventTimes(date)
	if err != nil {
		return 0, err
	}
	return times.DayLength().Hours(), nil
}

// DayLengths returns the day length in hours for each date. Dates where the
// sun does not rise or set yield NaN.
func (sc *SunCalc) DayLengths(dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	for i, d := range dates {
		h, err := sc.DayLengthHours(d)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = h
	}
	return out
}

// CacheSize returns the number of cached dates
func (sc *SunCalc) CacheSize() int {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	return len(sc.cache)
}
