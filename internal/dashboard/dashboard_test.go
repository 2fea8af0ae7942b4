package dashboard

import (
	"bytes"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

func day(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()
	ds := &ingest.Dataset{
		Detections: []ingest.Detection{
			{Timestamp: day(1, 5), ScientificName: "Turdus rufiventris", Confidence: 0.9},
			{Timestamp: day(1, 6), ScientificName: "Pitangus sulphuratus", Confidence: 0.7},
			{Timestamp: day(2, 18), ScientificName: "Turdus rufiventris", Confidence: 0.85},
		},
		Weather: []ingest.Weather{
			{Time: day(1, 0), TemperatureMax: 30, TemperatureMean: 24, TemperatureMin: 18, Precipitation: 1.5, WindSpeedMax: 12, DaylightDuration: 43200},
			{Time: day(2, 0), TemperatureMax: math.NaN(), TemperatureMean: 23, TemperatureMin: 17, Precipitation: 0, WindSpeedMax: 9, DaylightDuration: 43000},
		},
		Moon: []ingest.Moon{
			{Date: day(1, 0), Illumination: 0.5, Phase: ingest.PhaseNew},
			{Date: day(2, 0), Illumination: 3.2, Phase: "waxing_crescent"},
		},
	}
	cfg := pipeline.NewFilterConfig(pipeline.NewDate(2024, 3, 1), pipeline.NewDate(2024, 3, 2))
	return pipeline.Run(ds, cfg)
}

type fixedDayLength struct{ hours float64 }

func (f fixedDayLength) DayLengths(dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	for i := range out {
		out[i] = f.hours
	}
	return out
}

type countingRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (c *countingRecorder) RecordOperation(operation, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = map[string]int{}
	}
	c.ops[operation+"/"+status]++
}

func (c *countingRecorder) RecordDuration(string, float64) {}
func (c *countingRecorder) RecordError(string, string)     {}

func render(t *testing.T, o Options, view WeatherView) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(o).Render(&buf, testResult(t), view))
	return buf.String()
}

func TestRenderContainsChartsAndBackground(t *testing.T) {
	t.Parallel()

	html := render(t, Options{}, ViewTemperature)

	for _, want := range []string{
		PageTitle,
		DefaultBackground,
		"Espécies Únicas",
		"Top 20 Espécies",
		"Registros ao Longo do Tempo",
		"Espécies ao Longo do Tempo",
		"Gráfico Circular por Hora",
		"Condições Climáticas",
		"Iluminação Lunar",
		"Temp. Máx.",
		"05:00",
		"Lua new",
		colorRecords,
		colorSpecies,
	} {
		assert.Contains(t, html, want)
	}
	// NaN weather cells become gaps rather than breaking the chart JSON
	assert.Contains(t, html, `"value":"-"`)
}

func TestRenderUsesConfiguredTheme(t *testing.T) {
	t.Parallel()

	html := render(t, Options{Background: "#000010", TopSpecies: 5}, ViewTemperature)
	assert.Contains(t, html, "#000010")
	assert.NotContains(t, html, DefaultBackground)
	assert.Contains(t, html, "Top 5 Espécies")
}

func TestRenderWeatherViews(t *testing.T) {
	t.Parallel()

	precip := render(t, Options{}, ViewPrecipitation)
	assert.Contains(t, precip, "Precipitação")
	assert.Contains(t, precip, colorPrecipitation)
	assert.NotContains(t, precip, "Temp. Máx.")
	assert.NotContains(t, precip, "Faixa de Temperatura")

	temp := render(t, Options{}, ViewTemperature)
	assert.Contains(t, temp, "Faixa de Temperatura")
	assert.Contains(t, temp, colorTempBand)
	assert.Contains(t, temp, "temperature-band")

	wind := render(t, Options{}, ViewWind)
	assert.Contains(t, wind, "Vel. Vento Máx.")
	assert.Contains(t, wind, "Duração do Dia (h)")
	assert.NotContains(t, wind, "Duração Astronômica")

	withSun := render(t, Options{DayLength: fixedDayLength{hours: 12.5}}, ViewWind)
	assert.Contains(t, withSun, "Duração Astronômica")
	assert.Contains(t, withSun, "12.5")
}

func TestRenderEmptyResult(t *testing.T) {
	t.Parallel()

	ds := &ingest.Dataset{Detections: []ingest.Detection{
		{Timestamp: day(1, 5), ScientificName: "A", Confidence: 0.5},
	}}
	cfg := pipeline.NewFilterConfig(pipeline.NewDate(2024, 4, 1), pipeline.NewDate(2024, 4, 2))
	result := pipeline.Run(ds, cfg)
	require.Zero(t, result.Metrics.TotalRecords)

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(Options{}).Render(&buf, result, ViewTemperature))
	assert.Contains(t, buf.String(), "Total de Registros: 0")
}

func TestRenderRecordsMetrics(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(Options{Metrics: rec}).Render(&buf, testResult(t), ViewWind))
	assert.Equal(t, 1, rec.ops[metrics.OpRenderHTML+"/"+metrics.StatusSuccess])
}

func TestNumberFormat(t *testing.T) {
	t.Parallel()

	br := newNumberFormat("pt-BR")
	assert.Equal(t, "12.345", br.Int(12345))
	assert.Equal(t, "65,00%", br.Percent(0.65))
	assert.Equal(t, "-", br.Percent(math.NaN()))

	en := newNumberFormat("en-US")
	assert.Equal(t, "12,345", en.Int(12345))

	fallback := newNumberFormat("not a locale")
	assert.Equal(t, "12.345", fallback.Int(12345))
}

func TestParseWeatherView(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want WeatherView
	}{
		{"", ViewTemperature},
		{"temperature", ViewTemperature},
		{"Precipitation", ViewPrecipitation},
		{" wind ", ViewWind},
	}
	for _, tt := range tests {
		got, err := ParseWeatherView(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseWeatherView("humidity")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRenderWriteFailure(t *testing.T) {
	t.Parallel()

	err := NewRenderer(Options{}).Render(brokenWriter{}, testResult(t), ViewWind)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRender))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	ctx := ee.GetContext()
	assert.Equal(t, "wind", ctx["view"])
	assert.Equal(t, metrics.OpRenderHTML, ctx["operation"])
	assert.Contains(t, ctx, "duration_ms")
}
