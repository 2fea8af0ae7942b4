// analytics.go: filtered analytics endpoints

package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-dashboard/internal/dashboard"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
	"github.com/tphakala/birdnet-dashboard/internal/session"
)

// maxSpeciesLimit caps the species analytics limit parameter
const maxSpeciesLimit = 1000

// LiferResponse is one first occurrence
type LiferResponse struct {
	ScientificName string    `json:"scientific_name"`
	FirstSeen      time.Time `json:"first_seen"`
	Display        string    `json:"display"`
}

// SummaryResponse holds the headline numbers of the filtered set
type SummaryResponse struct {
	Filter       pipeline.FilterConfig `json:"filter"`
	Metrics      pipeline.Metrics      `json:"metrics"`
	Quality      pipeline.Quality      `json:"quality"`
	RecentLifers []LiferResponse       `json:"recent_lifers"`
}

// SpeciesResponse lists species counts, highest first
type SpeciesResponse struct {
	Total   int                     `json:"total"`
	Limit   int                     `json:"limit"`
	Species []pipeline.SpeciesCount `json:"species"`
}

// DailyResponse holds the per-day series
type DailyResponse struct {
	Daily       []pipeline.DailyPoint   `json:"daily"`
	DailyUnique []pipeline.DailySpecies `json:"daily_unique"`
}

// WeatherPoint is one day of weather. Fields outside the selected view and
// values missing from the source are omitted.
type WeatherPoint struct {
	Date            pipeline.Date `json:"date"`
	TemperatureMax  *float64      `json:"temperature_max,omitempty"`
	TemperatureMean *float64      `json:"temperature_mean,omitempty"`
	TemperatureMin  *float64      `json:"temperature_min,omitempty"`
	Precipitation   *float64      `json:"precipitation,omitempty"`
	WindSpeedMax    *float64      `json:"wind_speed_max,omitempty"`
	DaylightHours   *float64      `json:"daylight_hours,omitempty"`
	DayLengthHours  *float64      `json:"day_length_hours,omitempty"`
}

// WeatherResponse is the weather series for one view
type WeatherResponse struct {
	View   dashboard.WeatherView `json:"view"`
	Title  string                `json:"title"`
	Points []WeatherPoint        `json:"points"`
}

// MoonPoint is one day of lunar illumination
type MoonPoint struct {
	Date         pipeline.Date `json:"date"`
	Illumination *float64      `json:"illumination"`
	Phase        string        `json:"phase"`
}

// MoonResponse holds the illumination series and phase markers
type MoonResponse struct {
	Illumination []MoonPoint     `json:"illumination"`
	NewMoons     []pipeline.Date `json:"new_moons"`
	FullMoons    []pipeline.Date `json:"full_moons"`
}

func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/sessions/:id/summary", c.GetSummary)
	c.Group.GET("/sessions/:id/analytics/species", c.GetSpeciesAnalytics)
	c.Group.GET("/sessions/:id/analytics/hourly", c.GetHourlyAnalytics)
	c.Group.GET("/sessions/:id/analytics/daily", c.GetDailyAnalytics)
	c.Group.GET("/sessions/:id/weather", c.GetWeather)
	c.Group.GET("/sessions/:id/moon", c.GetMoon)
}

// runPipeline filters the session dataset with its current filter
func (c *Controller) runPipeline(sess *session.Session) *pipeline.Result {
	r := pipeline.Run(sess.Dataset, sess.Filter())

	rec := c.recorder()
	rec.RecordOperation(metrics.OpPipeline, metrics.StatusSuccess)
	rec.RecordDuration(metrics.OpPipeline, r.Elapsed.Seconds())
	if c.metrics != nil {
		c.metrics.Dashboard.SetFilteredRecords(r.Metrics.TotalRecords)
	}
	return r
}

// sessionResult resolves the session and runs the pipeline. On failure the
// error response has already been written and r is nil.
func (c *Controller) sessionResult(ctx echo.Context) (r *pipeline.Result, err error) {
	sess, handled, err := c.lookupSession(ctx)
	if handled {
		return nil, err
	}
	return c.runPipeline(sess), nil
}

// GetSummary handles GET /api/v2/sessions/:id/summary
func (c *Controller) GetSummary(ctx echo.Context) error {
	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}

	lifers := r.RecentLifers(c.Renderer.Options().RecentLifers)
	resp := SummaryResponse{
		Filter:       r.Filter,
		Metrics:      r.Metrics,
		Quality:      r.Quality,
		RecentLifers: make([]LiferResponse, 0, len(lifers)),
	}
	for _, l := range lifers {
		resp.RecentLifers = append(resp.RecentLifers, LiferResponse{
			ScientificName: l.ScientificName,
			FirstSeen:      l.FirstSeen,
			Display:        l.Display(),
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetSpeciesAnalytics handles GET /api/v2/sessions/:id/analytics/species?limit=N
func (c *Controller) GetSpeciesAnalytics(ctx echo.Context) error {
	limit := c.Renderer.Options().TopSpecies
	if raw := ctx.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSpeciesLimit {
			return c.HandleError(ctx,
				errors.Newf("limit must be an integer between 1 and %d", maxSpeciesLimit).
					Component("api").
					Category(errors.CategoryValidation).
					Context("limit", raw).
					Build(),
				"Invalid limit parameter", http.StatusBadRequest)
		}
		limit = n
	}

	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}

	return ctx.JSON(http.StatusOK, SpeciesResponse{
		Total:   len(r.SpeciesCounts),
		Limit:   limit,
		Species: r.TopSpecies(limit),
	})
}

// GetHourlyAnalytics handles GET /api/v2/sessions/:id/analytics/hourly
func (c *Controller) GetHourlyAnalytics(ctx echo.Context) error {
	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r.Hourly)
}

// GetDailyAnalytics handles GET /api/v2/sessions/:id/analytics/daily
func (c *Controller) GetDailyAnalytics(ctx echo.Context) error {
	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DailyResponse{Daily: r.Daily, DailyUnique: r.DailyUnique})
}

// GetWeather handles GET /api/v2/sessions/:id/weather?view=temperature|precipitation|wind
func (c *Controller) GetWeather(ctx echo.Context) error {
	view, err := dashboard.ParseWeatherView(ctx.QueryParam("view"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid weather view", http.StatusBadRequest)
	}

	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}

	var dayLengths []float64
	if view == dashboard.ViewWind && c.sunCalc != nil {
		dates := make([]time.Time, len(r.Weather))
		for i := range r.Weather {
			dates[i] = r.Weather[i].Time
		}
		dayLengths = c.sunCalc.DayLengths(dates)
	}

	points := make([]WeatherPoint, len(r.Weather))
	for i := range r.Weather {
		points[i] = weatherPoint(&r.Weather[i], view)
		if dayLengths != nil {
			points[i].DayLengthHours = finite(dayLengths[i])
		}
	}

	return ctx.JSON(http.StatusOK, WeatherResponse{View: view, Title: view.Title(), Points: points})
}

// GetMoon handles GET /api/v2/sessions/:id/moon
func (c *Controller) GetMoon(ctx echo.Context) error {
	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}

	resp := MoonResponse{
		Illumination: make([]MoonPoint, len(r.Moon)),
		NewMoons:     moonDates(r.NewMoonMarkers()),
		FullMoons:    moonDates(r.FullMoonMarkers()),
	}
	for i := range r.Moon {
		resp.Illumination[i] = MoonPoint{
			Date:         pipeline.DateOf(r.Moon[i].Date),
			Illumination: finite(r.Moon[i].Illumination),
			Phase:        r.Moon[i].Phase,
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func weatherPoint(w *ingest.Weather, view dashboard.WeatherView) WeatherPoint {
	p := WeatherPoint{Date: pipeline.DateOf(w.Time)}
	switch view {
	case dashboard.ViewPrecipitation:
		p.Precipitation = finite(w.Precipitation)
	case dashboard.ViewWind:
		p.WindSpeedMax = finite(w.WindSpeedMax)
		p.DaylightHours = finite(w.DaylightHours())
	default:
		p.TemperatureMax = finite(w.TemperatureMax)
		p.TemperatureMean = finite(w.TemperatureMean)
		p.TemperatureMin = finite(w.TemperatureMin)
	}
	return p
}

func moonDates(rows []ingest.Moon) []pipeline.Date {
	out := make([]pipeline.Date, len(rows))
	for i := range rows {
		out[i] = pipeline.DateOf(rows[i].Date)
	}
	return out
}

// finite returns nil for NaN and infinities, which JSON cannot encode
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
