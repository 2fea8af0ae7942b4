// Package observability provides metrics and monitoring capabilities for the dashboard.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Dashboard *metrics.DashboardMetrics
	HTTP      *metrics.HTTPMetrics
	SunCalc   *metrics.SunCalcMetrics
}

// NewMetrics creates a new instance of Metrics on its own registry,
// together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	dashboardMetrics, err := metrics.NewDashboardMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Dashboard metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	sunCalcMetrics, err := metrics.NewSunCalcMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create SunCalc metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Dashboard: dashboardMetrics,
		HTTP:      httpMetrics,
		SunCalc:   sunCalcMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promErrorLogger forwards promhttp errors to the module logger
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	logger.Global().Module("metrics").Warn("metrics handler error",
		logger.String("detail", fmt.Sprint(v...)))
}
