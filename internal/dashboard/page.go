package dashboard

import (
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// PageTitle is the HTML document title
const PageTitle = "Dashboard de Detecções de Aves"

// Renderer builds dashboard pages. It is safe for concurrent use.
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer, filling unset options with defaults
func NewRenderer(o Options) *Renderer {
	return &Renderer{opts: o.withDefaults()}
}

// Options returns the effective render options
func (r *Renderer) Options() Options {
	return r.opts
}

// Page assembles the chart page for a result without rendering it
func (r *Renderer) Page(result *pipeline.Result, view WeatherView) *components.Page {
	b := &chartBuilder{opts: r.opts, num: newNumberFormat(r.opts.Locale)}

	page := components.NewPage()
	page.SetPageTitle(PageTitle)
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		b.metricsHeader(result),
		b.topSpecies(result),
		b.dailyRecords(result),
		b.dailySpecies(result),
		b.hourlyRose(result),
		b.weather(result, view),
		b.moon(result),
	)
	return page
}

// Render writes the complete HTML dashboard for result to w
func (r *Renderer) Render(w io.Writer, result *pipeline.Result, view WeatherView) error {
	start := time.Now()

	if err := r.Page(result, view).Render(w); err != nil {
		r.opts.Metrics.RecordOperation(metrics.OpRenderHTML, metrics.StatusError)
		r.opts.Metrics.RecordError(metrics.OpRenderHTML, string(errors.CategoryRender))
		return errors.New(err).
			Component("dashboard").
			Category(errors.CategoryRender).
			Context("view", string(view)).
			Timing(metrics.OpRenderHTML, time.Since(start)).
			Build()
	}

	elapsed := time.Since(start)
	r.opts.Metrics.RecordOperation(metrics.OpRenderHTML, metrics.StatusSuccess)
	r.opts.Metrics.RecordDuration(metrics.OpRenderHTML, elapsed.Seconds())
	GetLogger().Debug("dashboard rendered",
		logger.String("view", string(view)),
		logger.Int("records", result.Metrics.TotalRecords),
		logger.Duration("elapsed", elapsed))
	return nil
}
