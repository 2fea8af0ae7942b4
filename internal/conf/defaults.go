// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/dashboard.log")
	viper.SetDefault("logging.file.flushinterval", 5*time.Second)

	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.readtimeout", 30*time.Second)
	viper.SetDefault("webserver.writetimeout", 30*time.Second)
	viper.SetDefault("webserver.idletimeout", 120*time.Second)
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	viper.SetDefault("webserver.bodylimit", "64M")
	viper.SetDefault("webserver.uploadratelimit", 2.0)
	viper.SetDefault("webserver.allowedorigins", []string{})

	viper.SetDefault("session.ttl", 2*time.Hour)
	viper.SetDefault("session.cleanupinterval", 10*time.Minute)

	viper.SetDefault("dashboard.topspecies", 20)
	viper.SetDefault("dashboard.recentlifers", 5)
	viper.SetDefault("dashboard.locale", "pt-BR")
	viper.SetDefault("dashboard.weatherview", "temperature")
	viper.SetDefault("dashboard.theme.background", "#1e1e2f")
	viper.SetDefault("dashboard.theme.foreground", "#ffffff")

	viper.SetDefault("location.latitude", 0.000)
	viper.SetDefault("location.longitude", 0.000)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
