package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/birdnet-dashboard/internal/api/middleware"
	v2 "github.com/tphakala/birdnet-dashboard/internal/api/v2"
	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability"
	"github.com/tphakala/birdnet-dashboard/internal/suncalc"
)

// uploadBurst is the number of uploads a client may send back to back
const uploadBurst = 3

// Server is the main HTTP server for the dashboard.
// It manages the Echo framework instance, middleware, and all HTTP routes.
type Server struct {
	// Core components
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	logger   logger.Logger

	// Dependencies
	sunCalc *suncalc.SunCalc
	metrics *observability.Metrics

	// API controller
	apiController *v2.Controller

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithSunCalc sets the sun calculator for the server.
func WithSunCalc(sc *suncalc.SunCalc) ServerOption {
	return func(s *Server) {
		s.sunCalc = sc
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		logger:    GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sunCalc == nil && settings.Location.IsSet() {
		s.sunCalc = suncalc.NewSunCalc(settings.Location.Latitude, settings.Location.Longitude)
	}
	if s.sunCalc != nil && s.metrics != nil {
		s.sunCalc.SetMetrics(s.metrics.SunCalc)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.logger.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("metrics", config.MetricsEnabled && s.metrics != nil),
		logger.Bool("suncalc", s.sunCalc != nil))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())

	if s.metrics != nil {
		s.echo.Use(mw.NewHTTPMetrics(s.metrics.HTTP))
	}

	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger.Module("http"), func(c echo.Context) bool {
		return c.Path() == s.config.MetricsPath
	}))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip(s.config.MetricsPath))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	if s.config.MetricsEnabled && s.metrics != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v2.Option{}
	if s.metrics != nil {
		opts = append(opts, v2.WithMetrics(s.metrics))
	}
	if s.sunCalc != nil {
		opts = append(opts, v2.WithSunCalc(s.sunCalc))
	}
	if s.config.UploadRateLimit > 0 {
		var onThrottle func()
		if s.metrics != nil {
			onThrottle = s.metrics.Dashboard.RecordUploadThrottled
		}
		limiter := mw.NewUploadLimiter(s.config.UploadRateLimit, uploadBurst, onThrottle)
		opts = append(opts, v2.WithUploadLimiter(limiter.Middleware()))
	}

	apiController, err := v2.New(s.echo, s.settings, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v2: %w", err)
	}
	s.apiController = apiController

	s.logger.Debug("routes initialized",
		logger.String("api_version", "v2"),
		logger.Int("routes", len(s.echo.Routes())))
	return nil
}

// Start serves HTTP requests and blocks until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.startBlocking()
	}()

	select {
	case err := <-errCh:
		s.apiController.Shutdown()
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, initiating graceful shutdown")
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// startBlocking begins serving HTTP requests and blocks until the server is shut down.
func (s *Server) startBlocking() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", logger.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and releases the session store.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.echo.Shutdown(ctx)
	if s.apiController != nil {
		s.apiController.Shutdown()
	}
	if err != nil {
		s.logger.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("server shutdown complete",
		logger.Duration("uptime", time.Since(s.startTime)))
	return nil
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}
