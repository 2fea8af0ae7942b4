// Package api provides the HTTP server infrastructure for the dashboard.
// The JSON endpoints live in the v2 subpackage.
package api

import (
	"fmt"
	"time"

	"github.com/labstack/gommon/bytes"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64M"
	DefaultMetricsPath     = "/metrics"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Server binding
	Host string // Host to bind to (empty for all interfaces)
	Port string // Port to listen on

	AllowedOrigins []string // CORS allowed origins

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit       string  // Maximum request body size (e.g. "64M")
	UploadRateLimit float64 // Uploads per second per client, 0 disables

	// Metrics endpoint
	MetricsEnabled bool
	MetricsPath    string

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		MetricsPath:     DefaultMetricsPath,
	}
}

// ConfigFromSettings creates a Config from the application settings. Unset
// values keep their defaults.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := settings.WebServer

	cfg.Host = ws.Host
	if ws.Port != "" {
		cfg.Port = ws.Port
	}
	if len(ws.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = ws.AllowedOrigins
	}
	if ws.ReadTimeout > 0 {
		cfg.ReadTimeout = ws.ReadTimeout
	}
	if ws.WriteTimeout > 0 {
		cfg.WriteTimeout = ws.WriteTimeout
	}
	if ws.IdleTimeout > 0 {
		cfg.IdleTimeout = ws.IdleTimeout
	}
	if ws.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = ws.ShutdownTimeout
	}
	if ws.BodyLimit != "" {
		cfg.BodyLimit = ws.BodyLimit
	}
	cfg.UploadRateLimit = ws.UploadRateLimit

	cfg.MetricsEnabled = settings.Metrics.Enabled
	if settings.Metrics.Path != "" {
		cfg.MetricsPath = settings.Metrics.Path
	}

	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return configError("port is required", "port", c.Port)
	}
	if c.ReadTimeout <= 0 {
		return configError("read timeout must be positive", "readtimeout", c.ReadTimeout)
	}
	if c.WriteTimeout <= 0 {
		return configError("write timeout must be positive", "writetimeout", c.WriteTimeout)
	}
	if _, err := c.BodyLimitBytes(); err != nil {
		return configError(fmt.Sprintf("invalid body limit %q", c.BodyLimit), "bodylimit", c.BodyLimit)
	}
	if c.UploadRateLimit < 0 {
		return configError("upload rate limit cannot be negative", "uploadratelimit", c.UploadRateLimit)
	}
	return nil
}

// BodyLimitBytes parses BodyLimit into a byte count
func (c *Config) BodyLimitBytes() (int64, error) {
	n, err := bytes.Parse(c.BodyLimit)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("body limit must be positive")
	}
	return n, nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, body_limit=%s, upload_rate=%.2f/s, metrics=%v",
		c.Address(), c.BodyLimit, c.UploadRateLimit, c.MetricsEnabled)
}

func configError(msg, field string, value any) error {
	return errors.Newf("%s", msg).
		Component("api").
		Category(errors.CategoryConfiguration).
		Context("field", field).
		Context("value", value).
		Build()
}
