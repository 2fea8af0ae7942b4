// Package metrics provides Prometheus metrics for observability.
package metrics

import "github.com/tphakala/birdnet-dashboard/internal/logger"

func getLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
