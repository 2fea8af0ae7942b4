// Package metrics provides suncalc service metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SunCalcMetrics contains Prometheus metrics for day length calculations
type SunCalcMetrics struct {
	registry *prometheus.Registry

	sunCalcOperationsTotal *prometheus.CounterVec
	sunCalcErrorsTotal     *prometheus.CounterVec
	sunCalcDurationSeconds *prometheus.HistogramVec
	sunCalcCacheSize       prometheus.Gauge
}

// NewSunCalcMetrics creates and registers new suncalc metrics
func NewSunCalcMetrics(registry *prometheus.Registry) (*SunCalcMetrics, error) {
	m := &SunCalcMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SunCalcMetrics) initMetrics() {
	m.sunCalcOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suncalc_operations_total",
			Help: "Total number of sun calculation operations",
		},
		[]string{"operation", "status"},
	)

	m.sunCalcErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suncalc_errors_total",
			Help: "Total number of sun calculation errors",
		},
		[]string{"operation", "error_type"}, // error_type: polar_day, polar_night, calculation
	)

	m.sunCalcDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suncalc_duration_seconds",
			Help:    "Time taken for sun calculation operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10), // 1ms to ~1s
		},
		[]string{"operation"},
	)

	m.sunCalcCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "suncalc_cache_size",
		Help: "Current number of entries in the suncalc cache",
	})
}

// Describe implements the Collector interface
func (m *SunCalcMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sunCalcOperationsTotal.Describe(ch)
	m.sunCalcErrorsTotal.Describe(ch)
	m.sunCalcDurationSeconds.Describe(ch)
	m.sunCalcCacheSize.Describe(ch)
}

// Collect implements the Collector interface
func (m *SunCalcMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sunCalcOperationsTotal.Collect(ch)
	m.sunCalcErrorsTotal.Collect(ch)
	m.sunCalcDurationSeconds.Collect(ch)
	m.sunCalcCacheSize.Collect(ch)
}

// RecordOperation implements Recorder
func (m *SunCalcMetrics) RecordOperation(operation, status string) {
	m.sunCalcOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError implements Recorder
func (m *SunCalcMetrics) RecordError(operation, errorType string) {
	m.sunCalcErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordDuration implements Recorder
func (m *SunCalcMetrics) RecordDuration(operation string, seconds float64) {
	m.sunCalcDurationSeconds.WithLabelValues(operation).Observe(seconds)
}

// UpdateCacheSize updates the cache size gauge
func (m *SunCalcMetrics) UpdateCacheSize(size int) {
	m.sunCalcCacheSize.Set(float64(size))
}
