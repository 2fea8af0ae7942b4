// dashboard.go: rendered HTML dashboard

package api

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-dashboard/internal/dashboard"
)

func (c *Controller) initDashboardRoutes() {
	c.Group.GET("/sessions/:id/dashboard", c.GetDashboard)
}

// GetDashboard handles GET /api/v2/sessions/:id/dashboard?view=... and
// returns the complete chart page. The default view comes from the
// dashboard settings.
func (c *Controller) GetDashboard(ctx echo.Context) error {
	raw := ctx.QueryParam("view")
	if raw == "" {
		raw = c.Settings.Dashboard.WeatherView
	}
	view, err := dashboard.ParseWeatherView(raw)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid weather view", http.StatusBadRequest)
	}

	r, err := c.sessionResult(ctx)
	if r == nil {
		return err
	}

	// render fully before writing so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := c.Renderer.Render(&buf, r, view); err != nil {
		return c.HandleError(ctx, err, "Failed to render dashboard", http.StatusInternalServerError)
	}
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}
