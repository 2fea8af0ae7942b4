// Package metrics provides custom Prometheus metrics for the dashboard.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on a concrete collector so tests can
// substitute a recording fake.
type Recorder interface {
	// RecordOperation records an operation with its status
	// (e.g. "ingest", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}

// NoOpRecorder is a Recorder that discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(operation, status string)         {}
func (NoOpRecorder) RecordDuration(operation string, seconds float64) {}
func (NoOpRecorder) RecordError(operation, errorType string)          {}
