// Package dashboard renders the interactive HTML dashboard for a pipeline
// result using go-echarts.
package dashboard

import (
	"strings"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

// WeatherView selects which weather chart is drawn
type WeatherView string

const (
	ViewTemperature   WeatherView = "temperature"
	ViewPrecipitation WeatherView = "precipitation"
	ViewWind          WeatherView = "wind"
)

// WeatherViews lists the accepted views in display order
var WeatherViews = []WeatherView{ViewTemperature, ViewPrecipitation, ViewWind}

// ParseWeatherView parses a view name. An empty string selects the
// temperature view.
func ParseWeatherView(s string) (WeatherView, error) {
	switch WeatherView(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewTemperature:
		return ViewTemperature, nil
	case ViewPrecipitation:
		return ViewPrecipitation, nil
	case ViewWind:
		return ViewWind, nil
	}
	return "", errors.Newf("unknown weather view %q", s).
		Component("dashboard").
		Category(errors.CategoryValidation).
		Context("view", s).
		Build()
}

// Title returns the localized selector label of the view
func (v WeatherView) Title() string {
	switch v {
	case ViewPrecipitation:
		return "Precipitação"
	case ViewWind:
		return "Vento"
	default:
		return "Temperatura"
	}
}
