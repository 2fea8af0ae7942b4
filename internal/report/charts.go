package report

import (
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// PNG chart file names
const (
	TopSpeciesPNG       = "top_species.png"
	DailyRecordsPNG     = "daily_records.png"
	DailySpeciesPNG     = "daily_species.png"
	MoonIlluminationPNG = "moon_illumination.png"
)

const (
	chartWidth  = 1024
	chartHeight = 480
	barWidth    = 36
)

// palette is the dark dashboard style applied to every PNG
type palette struct {
	background drawing.Color
	foreground drawing.Color
}

func newPalette(background, foreground string) palette {
	return palette{
		background: hexColor(background, "1e1e2f"),
		foreground: hexColor(foreground, "ffffff"),
	}
}

// hexColor parses a CSS hex colour. Anything that is not #rgb or #rrggbb
// yields the fallback.
func hexColor(s, fallback string) drawing.Color {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 3 && len(h) != 6 {
		h = fallback
	}
	return drawing.ColorFromHex(h)
}

func (p palette) titleStyle() chart.Style {
	return chart.Style{FontSize: 16, FontColor: p.foreground}
}

func (p palette) axisStyle() chart.Style {
	return chart.Style{FontSize: 10, FontColor: p.foreground, StrokeColor: p.foreground}
}

func (p palette) backgroundStyle(left int) chart.Style {
	return chart.Style{
		Padding:   chart.Box{Top: 50, Left: left, Right: 30, Bottom: 40},
		FillColor: p.background,
	}
}

func (p palette) canvasStyle() chart.Style {
	return chart.Style{FillColor: p.background}
}

// renderable is satisfied by chart.Chart and chart.BarChart
type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// topSpeciesChart draws the most frequent species as vertical bars, or
// returns false when there is nothing to draw.
func (p palette) topSpeciesChart(r *pipeline.Result, n int) (chart.BarChart, bool) {
	top := r.TopSpecies(n)
	if len(top) == 0 {
		return chart.BarChart{}, false
	}

	bars := make([]chart.Value, 0, len(top))
	maxCount := 0
	for _, sc := range top {
		bars = append(bars, chart.Value{
			Value: float64(sc.Count),
			Label: sc.ScientificName,
			Style: chart.Style{FillColor: drawing.ColorFromHex("21918c"), StrokeColor: drawing.ColorFromHex("21918c")},
		})
		maxCount = max(maxCount, sc.Count)
	}

	return chart.BarChart{
		Title:      "Top Species",
		TitleStyle: p.titleStyle(),
		Background: p.backgroundStyle(20),
		Canvas:     p.canvasStyle(),
		Width:      max(chartWidth, len(bars)*(barWidth+16)+100),
		Height:     chartHeight + 120,
		BarWidth:   barWidth,
		XAxis: chart.Style{
			FontSize:            8,
			FontColor:           p.foreground,
			StrokeColor:         p.foreground,
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Name:      "Records",
			NameStyle: p.axisStyle(),
			Style:     p.axisStyle(),
			Range:     &chart.ContinuousRange{Min: 0, Max: paddedMax(float64(maxCount))},
		},
		Bars: bars,
	}, true
}

// timeChart draws one daily series. Series with fewer than two finite
// points cannot form an axis range and are skipped.
func (p palette) timeChart(title, yName, color string, xs []time.Time, ys []float64, yMax float64) (chart.Chart, bool) {
	xs, ys = finitePoints(xs, ys)
	if len(xs) < 2 {
		return chart.Chart{}, false
	}
	if yMax <= 0 {
		yMax = paddedMax(slices.Max(ys))
	}

	c := drawing.ColorFromHex(color)
	return chart.Chart{
		Title:      title,
		TitleStyle: p.titleStyle(),
		Background: p.backgroundStyle(70),
		Canvas:     p.canvasStyle(),
		Width:      chartWidth,
		Height:     chartHeight,
		XAxis: chart.XAxis{
			Name:           "Date",
			NameStyle:      p.axisStyle(),
			Style:          p.axisStyle(),
			ValueFormatter: chart.TimeValueFormatterWithFormat(pipeline.DateLayout),
		},
		YAxis: chart.YAxis{
			Name:      yName,
			NameStyle: p.axisStyle(),
			Style:     p.axisStyle(),
			Range:     &chart.ContinuousRange{Min: 0, Max: yMax},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: title,
				Style: chart.Style{
					StrokeColor: c,
					StrokeWidth: 2,
					FillColor:   c.WithAlpha(40),
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}, true
}

func (p palette) dailyRecordsChart(r *pipeline.Result) (chart.Chart, bool) {
	xs := make([]time.Time, 0, len(r.Daily))
	ys := make([]float64, 0, len(r.Daily))
	for _, d := range r.Daily {
		xs = append(xs, d.Date.Time())
		ys = append(ys, float64(d.Count))
	}
	return p.timeChart("Daily Records", "Records", "#00ff00", xs, ys, 0)
}

func (p palette) dailySpeciesChart(r *pipeline.Result) (chart.Chart, bool) {
	xs := make([]time.Time, 0, len(r.DailyUnique))
	ys := make([]float64, 0, len(r.DailyUnique))
	for _, d := range r.DailyUnique {
		xs = append(xs, d.Date.Time())
		ys = append(ys, float64(d.Species))
	}
	return p.timeChart("Daily Species", "Species", "#ff00ff", xs, ys, 0)
}

func (p palette) moonChart(r *pipeline.Result) (chart.Chart, bool) {
	xs := make([]time.Time, 0, len(r.Moon))
	ys := make([]float64, 0, len(r.Moon))
	for _, m := range r.Moon {
		xs = append(xs, m.Date)
		ys = append(ys, m.Illumination)
	}
	return p.timeChart("Moon Illumination", "Illumination (%)", "#FFD700", xs, ys, 100)
}

// finitePoints drops pairs whose value is NaN or infinite
func finitePoints(xs []time.Time, ys []float64) ([]time.Time, []float64) {
	outX := make([]time.Time, 0, len(xs))
	outY := make([]float64, 0, len(ys))
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		outX = append(outX, xs[i])
		outY = append(outY, ys[i])
	}
	return outX, outY
}

// paddedMax leaves headroom above the largest value and never returns zero
func paddedMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Ceil(v * 1.1)
}
