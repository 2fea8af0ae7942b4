// Package metrics provides dashboard pipeline and session metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DashboardMetrics contains Prometheus metrics for ingest, pipeline runs,
// sessions and chart rendering. It implements Recorder.
type DashboardMetrics struct {
	registry *prometheus.Registry

	// Generic operation metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Ingest metrics
	ingestRowsTotal  *prometheus.CounterVec
	ingestBytesTotal prometheus.Counter

	// Pipeline metrics
	filteredRecords prometheus.Gauge

	// Session metrics
	activeSessions   prometheus.Gauge
	sessionsEvicted  prometheus.Counter
	uploadsThrottled prometheus.Counter
}

// NewDashboardMetrics creates and registers new dashboard metrics
func NewDashboardMetrics(registry *prometheus.Registry) (*DashboardMetrics, error) {
	m := &DashboardMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DashboardMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_operations_total",
			Help: "Total number of dashboard operations",
		},
		[]string{"operation", "status"}, // operation: ingest, pipeline, render_html; status: success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_operation_duration_seconds",
			Help:    "Time taken for dashboard operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~400ms
		},
		[]string{"operation"},
	)

	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_operation_errors_total",
			Help: "Total number of dashboard operation errors",
		},
		[]string{"operation", "error_type"},
	)

	m.ingestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_ingest_rows_total",
			Help: "Total number of CSV rows loaded",
		},
		[]string{"input"}, // input: detections, weather, moon
	)

	m.ingestBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_ingest_bytes_total",
		Help: "Total number of uploaded CSV bytes",
	})

	m.filteredRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_filtered_records",
		Help: "Detections remaining after the most recent pipeline run",
	})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_active_sessions",
		Help: "Current number of dashboard sessions",
	})

	m.sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_sessions_evicted_total",
		Help: "Total number of sessions removed by expiry or deletion",
	})

	m.uploadsThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_uploads_throttled_total",
		Help: "Total number of uploads rejected by the rate limiter",
	})
}

// Describe implements the Collector interface
func (m *DashboardMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.operationErrors.Describe(ch)
	m.ingestRowsTotal.Describe(ch)
	m.ingestBytesTotal.Describe(ch)
	m.filteredRecords.Describe(ch)
	m.activeSessions.Describe(ch)
	m.sessionsEvicted.Describe(ch)
	m.uploadsThrottled.Describe(ch)
}

// Collect implements the Collector interface
func (m *DashboardMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.operationErrors.Collect(ch)
	m.ingestRowsTotal.Collect(ch)
	m.ingestBytesTotal.Collect(ch)
	m.filteredRecords.Collect(ch)
	m.activeSessions.Collect(ch)
	m.sessionsEvicted.Collect(ch)
	m.uploadsThrottled.Collect(ch)
}

// RecordOperation implements Recorder
func (m *DashboardMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *DashboardMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *DashboardMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordIngest records the rows and bytes of a successful upload
func (m *DashboardMetrics) RecordIngest(detections, weather, moon int, bytes int64) {
	m.ingestRowsTotal.WithLabelValues("detections").Add(float64(detections))
	m.ingestRowsTotal.WithLabelValues("weather").Add(float64(weather))
	m.ingestRowsTotal.WithLabelValues("moon").Add(float64(moon))
	if bytes > 0 {
		m.ingestBytesTotal.Add(float64(bytes))
	}
}

// SetFilteredRecords updates the filtered records gauge
func (m *DashboardMetrics) SetFilteredRecords(n int) {
	m.filteredRecords.Set(float64(n))
}

// SetActiveSessions updates the active sessions gauge
func (m *DashboardMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// RecordSessionEvicted counts a removed session
func (m *DashboardMetrics) RecordSessionEvicted() {
	m.sessionsEvicted.Inc()
}

// RecordUploadThrottled counts an upload rejected by the rate limiter
func (m *DashboardMetrics) RecordUploadThrottled() {
	m.uploadsThrottled.Inc()
}
