// config.go: This file contains the configuration for the BirdNET dashboard.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// LoggingSettings contains logging output options
type LoggingSettings struct {
	Level    string            `yaml:"level"`    // default level: trace, debug, info, warn, error
	Timezone string            `yaml:"timezone"` // "Local", "UTC" or IANA name
	File     LogFileSettings   `yaml:"file"`     // optional JSON log file
	Modules  map[string]string `yaml:"modules"`  // per-module level overrides
}

// LogFileSettings controls the JSON log file
type LogFileSettings struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flushinterval"` // buffered writes are flushed at least this often
}

// WebServerSettings contains HTTP server settings
type WebServerSettings struct {
	Host            string        `yaml:"host"`            // listen address
	Port            string        `yaml:"port"`            // listen port
	ReadTimeout     time.Duration `yaml:"readtimeout"`     // maximum duration for reading a request
	WriteTimeout    time.Duration `yaml:"writetimeout"`    // maximum duration for writing a response
	IdleTimeout     time.Duration `yaml:"idletimeout"`     // keep-alive idle timeout
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"` // graceful shutdown deadline
	BodyLimit       string        `yaml:"bodylimit"`       // maximum request body, e.g. "64M"
	UploadRateLimit float64       `yaml:"uploadratelimit"` // uploads per second per client, 0 disables
	AllowedOrigins  []string      `yaml:"allowedorigins"`  // CORS origins
}

// SessionSettings controls how long uploaded datasets stay in memory
type SessionSettings struct {
	TTL             time.Duration `yaml:"ttl"`             // idle time before a session expires
	CleanupInterval time.Duration `yaml:"cleanupinterval"` // how often expired sessions are purged
}

// DashboardSettings contains presentation defaults
type DashboardSettings struct {
	TopSpecies   int           `yaml:"topspecies"`   // entries in the top species chart
	RecentLifers int           `yaml:"recentlifers"` // entries in the recent lifers panel
	Locale       string        `yaml:"locale"`       // BCP 47 tag for number formatting
	WeatherView  string        `yaml:"weatherview"`  // temperature, precipitation or wind
	Theme        ThemeSettings `yaml:"theme"`
}

// ThemeSettings contains dashboard colours
type ThemeSettings struct {
	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
}

// LocationSettings is the recording station position. Zero means unset.
type LocationSettings struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// IsSet reports whether a station location has been configured
func (l LocationSettings) IsSet() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// MetricsSettings controls the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SentrySettings controls opt-in error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for the dashboard
type Settings struct {
	Debug     bool              `yaml:"debug"`
	Logging   LoggingSettings   `yaml:"logging"`
	WebServer WebServerSettings `yaml:"webserver"`
	Session   SessionSettings   `yaml:"session"`
	Dashboard DashboardSettings `yaml:"dashboard"`
	Location  LocationSettings  `yaml:"location"`
	Metrics   MetricsSettings   `yaml:"metrics"`
	Sentry    SentrySettings    `yaml:"sentry"`
}

// LoggingConfig converts the settings into a central logger configuration
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = "debug"
	}
	return &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Logging.Timezone,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		FileOutput: &logger.FileOutput{
			Enabled:       s.Logging.File.Enabled,
			Path:          s.Logging.File.Path,
			Level:         level,
			FlushInterval: s.Logging.File.FlushInterval,
		},
		ModuleLevels: s.Logging.Modules,
	}
}

// loadMutex serializes access to the global viper instance
var loadMutex sync.Mutex

// Load reads the configuration file and environment variables.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from configFile, or from the default search
// paths when configFile is empty.
func LoadFrom(configFile string) (*Settings, error) {
	loadMutex.Lock()
	defer loadMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Context("operation", "validate-config").
			Build()
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// invalid env values are reported but do not stop startup
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file: %w", err)).
				Category(errors.CategoryConfiguration).
				FileContext(configFile, 0).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-embedded-config").
			Build()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		// read-only environments still run on built-in defaults
		GetLogger().Warn("cannot create config directory, using defaults",
			logger.String("path", dir), logger.Error(err))
		return nil
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		GetLogger().Warn("cannot write default config, using defaults",
			logger.String("path", configPath), logger.Error(err))
		return nil
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// SaveSettings writes settings to the config file that was loaded, or to the
// first config file found on the default search paths. It returns the path
// written.
func SaveSettings(settings *Settings) (string, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		found, err := FindConfigFile()
		if err != nil {
			return "", err
		}
		path = found
	}
	if err := SaveYAMLConfig(path, settings); err != nil {
		return "", err
	}
	GetLogger().Info("settings saved", logger.String("path", path))
	return path, nil
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(fmt.Errorf("error marshaling settings to YAML: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(fmt.Errorf("error creating temporary file: %w", err)).
			Category(errors.CategoryFileIO).
			Build()
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return errors.New(fmt.Errorf("error writing to temporary file: %w", err)).
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(fmt.Errorf("error closing temporary file: %w", err)).
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Category(errors.CategoryFileIO).
			FileContext(configPath, int64(len(yamlData))).
			Build()
	}

	return nil
}
