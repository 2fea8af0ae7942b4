// Package api provides the v2 JSON API for uploading datasets and querying
// filtered detection analytics.
package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/dashboard"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/session"
	"github.com/tphakala/birdnet-dashboard/internal/suncalc"
)

// GetLogger returns the v2 API logger
func GetLogger() logger.Logger {
	return logger.Global().Module("api").Module("v2")
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Store    *session.Store
	Renderer *dashboard.Renderer

	metrics       *observability.Metrics
	sunCalc       *suncalc.SunCalc
	uploadLimiter echo.MiddlewareFunc
	ownsStore     bool
	startTime     time.Time
	logger        logger.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithMetrics records ingest, pipeline and render metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithSunCalc adds the astronomical day length to the wind view
func WithSunCalc(sc *suncalc.SunCalc) Option {
	return func(c *Controller) {
		c.sunCalc = sc
	}
}

// WithStore uses an existing session store. The caller keeps ownership and
// must close it.
func WithStore(s *session.Store) Option {
	return func(c *Controller) {
		c.Store = s
	}
}

// WithUploadLimiter guards the dataset upload route
func WithUploadLimiter(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.uploadLimiter = mw
	}
}

// New creates a new API controller and registers its routes on e
func New(e *echo.Echo, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if e == nil {
		return nil, fmt.Errorf("echo instance cannot be nil")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v2"),
		Settings:  settings,
		startTime: time.Now(),
		logger:    GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.Store == nil {
		c.Store = session.NewStore(session.Options{
			TTL:             settings.Session.TTL,
			CleanupInterval: settings.Session.CleanupInterval,
			OnEvicted:       c.onSessionEvicted,
		})
		c.ownsStore = true
	}

	renderOpts := dashboard.OptionsFromSettings(settings)
	if c.metrics != nil {
		renderOpts.Metrics = c.metrics.Dashboard
	}
	if c.sunCalc != nil {
		renderOpts.DayLength = c.sunCalc
	}
	c.Renderer = dashboard.NewRenderer(renderOpts)

	c.initRoutes()
	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.HealthCheck)
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"dataset routes", c.initDatasetRoutes},
		{"session routes", c.initSessionRoutes},
		{"analytics routes", c.initAnalyticsRoutes},
		{"dashboard routes", c.initDashboardRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("failed to initialize routes",
						logger.String("group", initializer.name),
						logger.Any("panic", r))
				}
			}()
			initializer.fn()
		}()
	}
}

// HealthCheck reports process uptime, memory and active sessions
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)

	response := map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"sessions":       c.Store.Count(),
		"system": map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"goroutines": runtime.NumGoroutine(),
		},
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if memInfo, err := proc.MemoryInfo(); err == nil {
			response["memory"] = map[string]any{
				"rss_bytes": memInfo.RSS,
				"rss":       bytes.Format(int64(memInfo.RSS)), //nolint:gosec // RSS fits in int64
			}
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources. A store passed with WithStore is
// left open.
func (c *Controller) Shutdown() {
	if c.ownsStore {
		c.Store.Close()
	}
}

func (c *Controller) onSessionEvicted(id string) {
	if c.metrics == nil {
		return
	}
	c.metrics.Dashboard.RecordSessionEvicted()
	if c.Store != nil {
		c.metrics.Dashboard.SetActiveSessions(c.Store.Count())
	}
}

// recorder returns the dashboard metrics or a no-op recorder
func (c *Controller) recorder() metrics.Recorder {
	if c.metrics == nil {
		return metrics.NoOpRecorder{}
	}
	return c.metrics.Dashboard
}

// ErrorResponse represents a standard error response format
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error response with a fresh correlation ID
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	return &ErrorResponse{
		Error:         errorMsg,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.New().String()[:8],
	}
}

// HandleError logs the error with its correlation ID and writes the JSON
// error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.Int("status", code),
		logger.String("error", errorResp.Error),
		logger.String("category", errorType(err)),
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error(message, fields...)
	} else {
		c.logger.Warn(message, fields...)
	}

	return ctx.JSON(code, errorResp)
}

// statusFor maps an error category to an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryFileParsing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorType returns the category of an enhanced error, used as the
// error_type metric label
func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}
