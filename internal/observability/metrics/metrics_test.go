package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRecorder captures recorded metrics for verification
type testRecorder struct {
	mu         sync.Mutex
	operations map[string]int
	durations  map[string][]float64
	errors     map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		operations: make(map[string]int),
		durations:  make(map[string][]float64),
		errors:     make(map[string]int),
	}
}

func (r *testRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[operation+"/"+status]++
}

func (r *testRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *testRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[operation+"/"+errorType]++
}

func TestRecorderImplementations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	dm, err := NewDashboardMetrics(reg)
	require.NoError(t, err)
	sm, err := NewSunCalcMetrics(reg)
	require.NoError(t, err)

	for _, r := range []Recorder{dm, sm, NoOpRecorder{}, newTestRecorder()} {
		r.RecordOperation(OpPipeline, StatusSuccess)
		r.RecordDuration(OpPipeline, 0.002)
		r.RecordError(OpPipeline, "validation")
	}
}

func TestDashboardMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewDashboardMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation(OpIngest, StatusSuccess)
	m.RecordOperation(OpIngest, StatusSuccess)
	m.RecordOperation(OpIngest, StatusError)
	m.RecordError(OpIngest, "file-parsing")
	m.RecordIngest(120, 30, 30, 4096)
	m.SetActiveSessions(3)
	m.SetFilteredRecords(87)
	m.RecordSessionEvicted()
	m.RecordUploadThrottled()

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpIngest, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationErrors.WithLabelValues(OpIngest, "file-parsing")), 0)
	assert.InDelta(t, 120, testutil.ToFloat64(m.ingestRowsTotal.WithLabelValues("detections")), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(m.ingestBytesTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.activeSessions), 0)
	assert.InDelta(t, 87, testutil.ToFloat64(m.filteredRecords), 0)

	expected := `
# HELP dashboard_sessions_evicted_total Total number of sessions removed by expiry or deletion
# TYPE dashboard_sessions_evicted_total counter
dashboard_sessions_evicted_total 1
`
	require.NoError(t, testutil.CollectAndCompare(m, strings.NewReader(expected), "dashboard_sessions_evicted_total"))

	// registering twice on the same registry fails
	_, err = NewDashboardMetrics(reg)
	assert.Error(t, err)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	m.RecordHTTPRequest("GET", "/health", 200, 0.01)
	m.RecordHTTPRequest("GET", "/health", 200, 0.02)
	m.RecordHTTPRequestError("POST", "/api/v2/datasets", "file-parsing")
	m.RecordHTTPResponseSize("GET", "/health", 512)

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m, "http_request_errors_total"))

	m.RequestStarted()
	m.RequestStarted()
	m.RequestFinished()
	assert.InDelta(t, 1, m.InFlight(), 0)
}

func TestSunCalcMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewSunCalcMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation(OpDayLength, StatusSuccess)
	m.RecordError(OpDayLength, "polar_night")
	m.UpdateCacheSize(12)

	assert.InDelta(t, 1, testutil.ToFloat64(m.sunCalcErrorsTotal.WithLabelValues(OpDayLength, "polar_night")), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(m.sunCalcCacheSize), 0)
}
