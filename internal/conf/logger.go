// Package conf provides configuration management for the BirdNET dashboard.
package conf

import "github.com/tphakala/birdnet-dashboard/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows
// SetGlobal calls made after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
