// Package report exports a pipeline result as static files: PNG charts,
// a YAML summary and the HTML dashboard.
package report

import (
	"cmp"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/tphakala/birdnet-dashboard/internal/dashboard"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// File names written next to the PNGs
const (
	DashboardHTML = "dashboard.html"
	SummaryYAML   = "summary.yaml"
)

// GetLogger returns the report module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("report")
}

// Options controls report output
type Options struct {
	Dashboard    dashboard.Options
	WeatherView  dashboard.WeatherView
	TopSpecies   int
	RecentLifers int
	Metrics      metrics.Recorder
}

func (o Options) withDefaults() Options {
	if o.TopSpecies <= 0 {
		o.TopSpecies = dashboard.DefaultTopSpecies
	}
	if o.RecentLifers <= 0 {
		o.RecentLifers = dashboard.DefaultRecentLifers
	}
	if o.WeatherView == "" {
		o.WeatherView = dashboard.ViewTemperature
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpRecorder{}
	}
	if o.Dashboard.Metrics == nil {
		o.Dashboard.Metrics = o.Metrics
	}
	return o
}

// Writer exports results into a directory
type Writer struct {
	dir  string
	opts Options
}

// NewWriter creates dir if needed and returns a writer targeting it
func NewWriter(dir string, o Options) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	return &Writer{dir: dir, opts: o.withDefaults()}, nil
}

// WriteAll writes the dashboard, the PNG charts and the summary, and
// returns the paths written.
func (w *Writer) WriteAll(r *pipeline.Result) ([]string, error) {
	var written []string

	htmlPath := filepath.Join(w.dir, DashboardHTML)
	renderer := dashboard.NewRenderer(w.opts.Dashboard)
	if err := writeFile(htmlPath, func(f io.Writer) error {
		return renderer.Render(f, r, w.opts.WeatherView)
	}); err != nil {
		return written, err
	}
	written = append(written, htmlPath)

	pngs, err := w.WritePNGs(r)
	written = append(written, pngs...)
	if err != nil {
		return written, err
	}

	summaryPath := filepath.Join(w.dir, SummaryYAML)
	if err := writeFile(summaryPath, func(f io.Writer) error {
		return WriteSummary(f, r, w.opts.TopSpecies, w.opts.RecentLifers)
	}); err != nil {
		return written, err
	}
	written = append(written, summaryPath)

	return written, nil
}

// WritePNGs renders the static charts. A chart without enough data is
// skipped, not treated as an error.
func (w *Writer) WritePNGs(r *pipeline.Result) ([]string, error) {
	start := time.Now()
	p := newPalette(
		cmp.Or(w.opts.Dashboard.Background, dashboard.DefaultBackground),
		cmp.Or(w.opts.Dashboard.Foreground, dashboard.DefaultForeground),
	)

	type pngChart struct {
		name  string
		chart renderable
	}
	var jobs []pngChart
	if c, ok := p.topSpeciesChart(r, w.opts.TopSpecies); ok {
		jobs = append(jobs, pngChart{TopSpeciesPNG, c})
	}
	if c, ok := p.dailyRecordsChart(r); ok {
		jobs = append(jobs, pngChart{DailyRecordsPNG, c})
	}
	if c, ok := p.dailySpeciesChart(r); ok {
		jobs = append(jobs, pngChart{DailySpeciesPNG, c})
	}
	if c, ok := p.moonChart(r); ok {
		jobs = append(jobs, pngChart{MoonIlluminationPNG, c})
	}

	var written []string
	for _, job := range jobs {
		path := filepath.Join(w.dir, job.name)
		if err := writeFile(path, func(f io.Writer) error {
			return job.chart.Render(chart.PNG, f)
		}); err != nil {
			w.opts.Metrics.RecordOperation(metrics.OpRenderPNG, metrics.StatusError)
			w.opts.Metrics.RecordError(metrics.OpRenderPNG, string(errors.CategoryRender))
			return written, err
		}
		written = append(written, path)
	}

	w.opts.Metrics.RecordOperation(metrics.OpRenderPNG, metrics.StatusSuccess)
	w.opts.Metrics.RecordDuration(metrics.OpRenderPNG, time.Since(start).Seconds())
	GetLogger().Debug("report charts written",
		logger.Int("charts", len(written)),
		logger.Int("skipped", 4-len(jobs)),
		logger.String("dir", w.dir))
	return written, nil
}

// writeFile creates path and streams fn's output into it. A failed render
// removes the partial file.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		if errors.IsCategory(err, errors.CategoryRender) {
			return err
		}
		return errors.New(err).
			Component("report").
			Category(errors.CategoryRender).
			Context("path", path).
			Build()
	}

	if err := f.Close(); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
