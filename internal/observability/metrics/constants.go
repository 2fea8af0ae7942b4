// Package metrics provides constants used across metric definitions.
package metrics

// Operation labels.
const (
	// OpIngest is a full three-file dataset load.
	OpIngest = "ingest"
	// OpPipeline is one filter-and-aggregate run.
	OpPipeline = "pipeline"
	// OpRenderHTML is a dashboard page render.
	OpRenderHTML = "render_html"
	// OpRenderPNG is a static report chart render.
	OpRenderPNG = "render_png"
	// OpDayLength is an astronomical day length calculation.
	OpDayLength = "day_length"
	// OpSessionCreate is a session creation.
	OpSessionCreate = "session_create"
	// OpFilterUpdate is a filter replacement on a session.
	OpFilterUpdate = "filter_update"
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket parameters.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms.
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount10 = 10
	BucketCount12 = 12
)
