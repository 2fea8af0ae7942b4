// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/gommon/bytes"
	"golang.org/x/text/language"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSessionSettings(&settings.Session); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDashboardSettings(&settings.Dashboard); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLocationSettings(&settings.Location); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is configured")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid webserver port %q", settings.Port)
	}

	if settings.BodyLimit != "" {
		if _, err := bytes.Parse(settings.BodyLimit); err != nil {
			return fmt.Errorf("invalid webserver body limit %q: %w", settings.BodyLimit, err)
		}
	}

	if settings.ReadTimeout < 0 || settings.WriteTimeout < 0 || settings.IdleTimeout < 0 {
		return fmt.Errorf("webserver timeouts must not be negative")
	}

	if settings.UploadRateLimit < 0 {
		return fmt.Errorf("webserver upload rate limit must not be negative")
	}

	return nil
}

func validateSessionSettings(settings *SessionSettings) error {
	if settings.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", settings.TTL)
	}
	if settings.CleanupInterval <= 0 {
		return fmt.Errorf("session cleanup interval must be positive, got %s", settings.CleanupInterval)
	}
	return nil
}

func validateDashboardSettings(settings *DashboardSettings) error {
	if settings.TopSpecies <= 0 {
		return fmt.Errorf("dashboard topspecies must be positive, got %d", settings.TopSpecies)
	}
	if settings.RecentLifers <= 0 {
		return fmt.Errorf("dashboard recentlifers must be positive, got %d", settings.RecentLifers)
	}
	if _, err := language.Parse(settings.Locale); err != nil {
		return fmt.Errorf("invalid dashboard locale %q: %w", settings.Locale, err)
	}
	switch strings.ToLower(settings.WeatherView) {
	case "temperature", "precipitation", "wind":
	default:
		return fmt.Errorf("dashboard weatherview must be temperature, precipitation or wind, got %q", settings.WeatherView)
	}
	return nil
}

func validateLocationSettings(settings *LocationSettings) error {
	if settings.Latitude < -90 || settings.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %g", settings.Latitude)
	}
	if settings.Longitude < -180 || settings.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %g", settings.Longitude)
	}
	return nil
}
