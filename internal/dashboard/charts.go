package dashboard

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// Series colours
const (
	colorRecords       = "#00ff00"
	colorSpecies       = "#ff00ff"
	colorTempMax       = "#ff4444"
	colorTempMean      = "#ffaa44"
	colorTempMin       = "#4444ff"
	colorTempBand      = "rgba(100,100,255,0.2)"
	colorPrecipitation = "rgba(0,191,255,0.7)"
	colorWind          = "#44ff44"
	colorDaylight      = "#ffff44"
	colorAstronomical  = "#aaaaaa"
	colorMoon          = "#FFD700"
	colorNewMoon       = "#1a1a1a"
	colorGrid          = "rgba(255,255,255,0.1)"
)

// viridis endpoints for the species bar colour scale
var viridis = []string{"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"}

// missing is how ECharts marks an absent data point
const missing = "-"

// chartBuilder holds the shared styling for one render
type chartBuilder struct {
	opts Options
	num  numberFormat
	seq  int
}

func (b *chartBuilder) init(id string) charts.GlobalOpts {
	b.seq++
	return charts.WithInitializationOpts(opts.Initialization{
		Width:           chartWidth,
		Height:          chartHeight,
		BackgroundColor: b.opts.Background,
		Theme:           "dark",
		ChartID:         fmt.Sprintf("%s_%d", id, b.seq),
	})
}

func (b *chartBuilder) title(text, subtitle string) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{
		Title:         text,
		Subtitle:      subtitle,
		TitleStyle:    &opts.TextStyle{Color: b.opts.Foreground},
		SubtitleStyle: &opts.TextStyle{Color: b.opts.Foreground},
	})
}

func (b *chartBuilder) axisLabel() *opts.AxisLabel {
	return &opts.AxisLabel{Color: b.opts.Foreground}
}

func gridLine() *opts.SplitLine {
	return &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorGrid}}
}

// metricsHeader is a gauge of the quality score titled with the headline
// counts and the most recent lifers.
func (b *chartBuilder) metricsHeader(r *pipeline.Result) *charts.Gauge {
	g := charts.NewGauge()

	lines := []string{
		fmt.Sprintf("Média de Confiança: %s", b.num.Percent(r.Quality.MeanConfidence)),
		fmt.Sprintf("Registros de Alta Confiança: %s", b.num.Percent(r.Quality.HighConfidenceShare)),
	}
	if lifers := r.RecentLifers(b.opts.RecentLifers); len(lifers) > 0 {
		lines = append(lines, "Últimos Lifers:")
		for _, l := range lifers {
			lines = append(lines, fmt.Sprintf("  %s  %s", l.ScientificName, l.Display()))
		}
	}

	g.SetGlobalOptions(
		b.init("metrics"),
		b.title(
			fmt.Sprintf("Espécies Únicas: %s   Total de Registros: %s",
				b.num.Int(r.Metrics.UniqueSpecies), b.num.Int(r.Metrics.TotalRecords)),
			strings.Join(lines, "\n"),
		),
	)
	g.AddSeries("Indicadores de Qualidade", []opts.GaugeData{
		{Name: "Qualidade", Value: r.Quality.Score},
	})
	return g
}

// topSpecies is a horizontal bar chart coloured by count. The largest count
// is drawn at the top.
func (b *chartBuilder) topSpecies(r *pipeline.Result) *charts.Bar {
	top := slices.Clone(r.TopSpecies(b.opts.TopSpecies))
	slices.Reverse(top)

	names := make([]string, 0, len(top))
	data := make([]opts.BarData, 0, len(top))
	maxCount := 0
	for _, sc := range top {
		names = append(names, sc.ScientificName)
		data = append(data, opts.BarData{Name: sc.ScientificName, Value: sc.Count})
		maxCount = max(maxCount, sc.Count)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		b.init("top_species"),
		b.title(fmt.Sprintf("Top %d Espécies", b.opts.TopSpecies), ""),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithGridOpts(opts.Grid{Left: "25%", ContainLabel: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max(maxCount, 1)),
			InRange:    &opts.VisualMapInRange{Color: viridis},
			Right:      "0",
			TextStyle:  &opts.TextStyle{Color: b.opts.Foreground},
		}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: b.axisLabel()}),
	)
	bar.SetXAxis(names).AddSeries("Registros", data)
	bar.XYReversal()
	return bar
}

// dailyLine draws one smoothed area series over the daily date axis
func (b *chartBuilder) dailyLine(id, title, name, color string, dates []string, values []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		b.init(id),
		b.title(title, ""),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
	)
	line.SetXAxis(dates).AddSeries(name, values,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: color, Opacity: opts.Float(0.1)}),
	)
	return line
}

func (b *chartBuilder) dailyRecords(r *pipeline.Result) *charts.Line {
	dates := make([]string, 0, len(r.Daily))
	values := make([]opts.LineData, 0, len(r.Daily))
	for _, p := range r.Daily {
		dates = append(dates, p.Date.String())
		values = append(values, opts.LineData{Value: p.Count})
	}
	return b.dailyLine("daily_records", "Registros ao Longo do Tempo", "Registros", colorRecords, dates, values)
}

func (b *chartBuilder) dailySpecies(r *pipeline.Result) *charts.Line {
	dates := make([]string, 0, len(r.DailyUnique))
	values := make([]opts.LineData, 0, len(r.DailyUnique))
	for _, p := range r.DailyUnique {
		dates = append(dates, p.Date.String())
		values = append(values, opts.LineData{Value: p.Species})
	}
	return b.dailyLine("daily_species", "Espécies ao Longo do Tempo", "Espécies", colorSpecies, dates, values)
}

// hourlyRose is a rose pie of the 24 hourly buckets labelled HH:00
func (b *chartBuilder) hourlyRose(r *pipeline.Result) *charts.Pie {
	data := make([]opts.PieData, 0, len(r.Hourly))
	for _, h := range r.Hourly {
		data = append(data, opts.PieData{Name: fmt.Sprintf("%02d:00", h.Hour), Value: h.Count})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		b.init("hourly"),
		b.title("Gráfico Circular por Hora", ""),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	pie.AddSeries("Detecções", data,
		charts.WithPieChartOpts(opts.PieChart{RoseType: "area", Radius: []string{"10%", "70%"}}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Color: b.opts.Foreground}),
	)
	return pie
}

// weather draws the selected weather view
func (b *chartBuilder) weather(r *pipeline.Result, view WeatherView) components.Charter {
	dates := make([]string, 0, len(r.Weather))
	times := make([]time.Time, 0, len(r.Weather))
	for _, w := range r.Weather {
		dates = append(dates, pipeline.DateOf(w.Time).String())
		times = append(times, w.Time)
	}

	globals := []charts.GlobalOpts{
		b.init("weather"),
		b.title("Condições Climáticas", view.Title()),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30", Right: "0",
			TextStyle: &opts.TextStyle{Color: b.opts.Foreground}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
	}

	if view == ViewPrecipitation {
		bar := charts.NewBar()
		bar.SetGlobalOptions(globals...)
		bar.SetXAxis(dates).AddSeries("Precipitação",
			weatherBars(r.Weather, func(w ingest.Weather) float64 { return w.Precipitation }),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorPrecipitation}),
		)
		return bar
	}

	line := charts.NewLine()
	line.SetGlobalOptions(globals...)
	line.SetXAxis(dates)

	if view == ViewWind {
		line.AddSeries("Vel. Vento Máx.",
			weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.WindSpeedMax }),
			lineStyle(colorWind, ""))
		line.ExtendYAxis(opts.YAxis{
			Name:      "Duração do Dia (h)",
			Position:  "right",
			AxisLabel: b.axisLabel(),
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		})
		line.AddSeries("Duração do Dia",
			weatherPoints(r.Weather, ingest.Weather.DaylightHours),
			lineStyle(colorDaylight, ""),
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
		if b.opts.DayLength != nil && len(times) > 0 {
			line.AddSeries("Duração Astronômica", floatPoints(b.opts.DayLength.DayLengths(times)),
				lineStyle(colorAstronomical, "dashed"),
				charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
		}
		return line
	}

	// min/max band: an invisible base at the minimum with the span stacked on top
	const bandStack, bandName = "temperature-band", "Faixa de Temperatura"
	line.AddSeries(bandName,
		weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.TemperatureMin }),
		charts.WithLineChartOpts(opts.LineChart{Stack: bandStack, Symbol: "none"}),
		charts.WithLineStyleOpts(opts.LineStyle{Opacity: opts.Float(0)}))
	line.AddSeries(bandName,
		weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.TemperatureMax - w.TemperatureMin }),
		charts.WithLineChartOpts(opts.LineChart{Stack: bandStack, Symbol: "none"}),
		charts.WithLineStyleOpts(opts.LineStyle{Opacity: opts.Float(0)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTempBand}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorTempBand, Opacity: opts.Float(1)}))

	line.AddSeries("Temp. Máx.",
		weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.TemperatureMax }),
		lineStyle(colorTempMax, ""))
	line.AddSeries("Temp. Média",
		weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.TemperatureMean }),
		lineStyle(colorTempMean, "dotted"))
	line.AddSeries("Temp. Mín.",
		weatherPoints(r.Weather, func(w ingest.Weather) float64 { return w.TemperatureMin }),
		lineStyle(colorTempMin, ""))
	return line
}

// moon draws the illumination area with markers on new and full moons
func (b *chartBuilder) moon(r *pipeline.Result) *charts.Line {
	dates := make([]string, 0, len(r.Moon))
	values := make([]opts.LineData, 0, len(r.Moon))
	for _, m := range r.Moon {
		dates = append(dates, pipeline.DateOf(m.Date).String())
		values = append(values, opts.LineData{Value: finiteValue(m.Illumination)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		b.init("moon"),
		b.title("Iluminação Lunar", ""),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "0",
			TextStyle: &opts.TextStyle{Color: b.opts.Foreground}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Data", AxisLabel: b.axisLabel()}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Iluminação (%)", Min: 0, Max: 100,
			AxisLabel: b.axisLabel(), SplitLine: gridLine()}),
	)
	line.SetXAxis(dates).AddSeries("Iluminação (%)", values,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorMoon, Width: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorMoon}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorMoon, Opacity: opts.Float(0.2)}),
	)

	line.Overlap(
		moonMarkers("Lua new", colorNewMoon, r.NewMoonMarkers()),
		moonMarkers("Lua full", colorMoon, r.FullMoonMarkers()),
	)
	return line
}

func moonMarkers(name, color string, rows []ingest.Moon) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(rows))
	for _, m := range rows {
		data = append(data, opts.ScatterData{
			Value:      []any{pipeline.DateOf(m.Date).String(), finiteValue(m.Illumination)},
			SymbolSize: 12,
		})
	}
	s := charts.NewScatter()
	s.AddSeries(name, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color, BorderColor: "white", BorderWidth: 1}))
	return s
}

func lineStyle(color, dash string) charts.SeriesOpts {
	return charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2, Type: dash})
}

func weatherPoints(rows []ingest.Weather, field func(ingest.Weather) float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(rows))
	for _, w := range rows {
		out = append(out, opts.LineData{Value: finiteValue(field(w))})
	}
	return out
}

func weatherBars(rows []ingest.Weather, field func(ingest.Weather) float64) []opts.BarData {
	out := make([]opts.BarData, 0, len(rows))
	for _, w := range rows {
		out = append(out, opts.BarData{Value: finiteValue(field(w))})
	}
	return out
}

func floatPoints(values []float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		out = append(out, opts.LineData{Value: finiteValue(v)})
	}
	return out
}

// finiteValue replaces NaN and Inf, which JSON cannot encode, with the
// ECharts missing marker.
func finiteValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missing
	}
	return v
}
