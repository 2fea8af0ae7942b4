// sessions.go: session state and filter endpoints

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
	"github.com/tphakala/birdnet-dashboard/internal/session"
)

// SessionResponse describes the state of one session
type SessionResponse struct {
	SessionID     string                `json:"session_id"`
	CreatedAt     time.Time             `json:"created_at"`
	Range         DateRange             `json:"range"`
	Filter        pipeline.FilterConfig `json:"filter"`
	Species       []string              `json:"species"`
	CommonSpecies []string              `json:"common_species"`
	Presets       []pipeline.Preset     `json:"presets"`
}

// FilterRequest is a partial filter update. Absent fields keep their
// current value.
type FilterRequest struct {
	StartDate           *pipeline.Date `json:"start_date"`
	EndDate             *pipeline.Date `json:"end_date"`
	DedupMode           *string        `json:"dedup_mode"`
	CommonSpeciesOnly   *bool          `json:"common_species_only"`
	SelectedSpecies     *[]string      `json:"selected_species"`
	ConfidenceThreshold *float64       `json:"confidence_threshold"`
}

func (c *Controller) initSessionRoutes() {
	c.Group.GET("/sessions/:id", c.GetSession)
	c.Group.DELETE("/sessions/:id", c.DeleteSession)
	c.Group.PUT("/sessions/:id/filter", c.UpdateFilter)
	c.Group.POST("/sessions/:id/filter/preset/:preset", c.ApplyFilterPreset)
}

// lookupSession resolves the :id path parameter. On failure the error
// response has already been written and handled is true.
func (c *Controller) lookupSession(ctx echo.Context) (sess *session.Session, handled bool, err error) {
	id := ctx.Param("id")
	sess, err = c.Store.Get(id)
	if err != nil {
		return nil, true, c.HandleError(ctx, err, "Session not found", statusFor(err))
	}
	return sess, false, nil
}

func sessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		SessionID:     sess.ID,
		CreatedAt:     sess.CreatedAt,
		Range:         DateRange{Start: sess.RangeStart, End: sess.RangeEnd},
		Filter:        sess.Filter(),
		Species:       pipeline.SpeciesOptions(sess.Dataset, false),
		CommonSpecies: pipeline.SpeciesOptions(sess.Dataset, true),
		Presets:       pipeline.Presets,
	}
}

// GetSession handles GET /api/v2/sessions/:id
func (c *Controller) GetSession(ctx echo.Context) error {
	sess, handled, err := c.lookupSession(ctx)
	if handled {
		return err
	}
	return ctx.JSON(http.StatusOK, sessionResponse(sess))
}

// DeleteSession handles DELETE /api/v2/sessions/:id
func (c *Controller) DeleteSession(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.Store.Delete(id); err != nil {
		return c.HandleError(ctx, err, "Session not found", statusFor(err))
	}
	c.logger.Info("session deleted", logger.String("session_id", id))
	return ctx.NoContent(http.StatusNoContent)
}

// UpdateFilter handles PUT /api/v2/sessions/:id/filter
func (c *Controller) UpdateFilter(ctx echo.Context) error {
	sess, handled, err := c.lookupSession(ctx)
	if handled {
		return err
	}

	var req FilterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid filter request", http.StatusBadRequest)
	}

	next, err := c.Store.UpdateFilter(sess.ID, func(cur pipeline.FilterConfig) (pipeline.FilterConfig, error) {
		next, err := req.apply(cur)
		if err != nil {
			return cur, err
		}
		if err := checkRange(sess, next); err != nil {
			return cur, err
		}
		return next, next.Validate()
	})
	if err != nil {
		c.recorder().RecordOperation(metrics.OpFilterUpdate, metrics.StatusError)
		return c.HandleError(ctx, err, "Invalid filter", statusFor(err))
	}

	c.recorder().RecordOperation(metrics.OpFilterUpdate, metrics.StatusSuccess)
	c.logger.Debug("filter updated",
		logger.String("session_id", sess.ID),
		logger.String("start", next.StartDate.String()),
		logger.String("end", next.EndDate.String()),
		logger.String("dedup", string(next.DedupMode)),
		logger.Int("species", len(next.SelectedSpecies)),
		logger.Float64("threshold", next.ConfidenceThreshold))

	return ctx.JSON(http.StatusOK, sessionResponse(sess))
}

// ApplyFilterPreset handles POST /api/v2/sessions/:id/filter/preset/:preset
func (c *Controller) ApplyFilterPreset(ctx echo.Context) error {
	sess, handled, err := c.lookupSession(ctx)
	if handled {
		return err
	}

	preset := pipeline.Preset(ctx.Param("preset"))
	_, err = c.Store.UpdateFilter(sess.ID, func(cur pipeline.FilterConfig) (pipeline.FilterConfig, error) {
		return pipeline.ApplyPreset(sess.Dataset, cur, preset)
	})
	if err != nil {
		c.recorder().RecordOperation(metrics.OpFilterUpdate, metrics.StatusError)
		return c.HandleError(ctx, err, "Cannot apply preset", statusFor(err))
	}

	c.recorder().RecordOperation(metrics.OpFilterUpdate, metrics.StatusSuccess)
	return ctx.JSON(http.StatusOK, sessionResponse(sess))
}

// apply merges the set fields of r into cur
func (r *FilterRequest) apply(cur pipeline.FilterConfig) (pipeline.FilterConfig, error) {
	next := cur.WithRange(cur.StartDate, cur.EndDate)
	if r.StartDate != nil {
		next.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		next.EndDate = *r.EndDate
	}
	if r.DedupMode != nil {
		mode, err := pipeline.ParseDedupMode(*r.DedupMode)
		if err != nil {
			return cur, err
		}
		next.DedupMode = mode
	}
	if r.CommonSpeciesOnly != nil {
		next.CommonSpeciesOnly = *r.CommonSpeciesOnly
	}
	if r.SelectedSpecies != nil {
		next = next.WithSpecies(*r.SelectedSpecies...)
	}
	if r.ConfidenceThreshold != nil {
		next.ConfidenceThreshold = *r.ConfidenceThreshold
	}
	return next, nil
}

// checkRange rejects dates outside the dataset range
func checkRange(sess *session.Session, f pipeline.FilterConfig) error {
	for _, d := range []struct {
		field string
		date  pipeline.Date
	}{
		{"start_date", f.StartDate},
		{"end_date", f.EndDate},
	} {
		if d.date.IsZero() || d.date.Within(sess.RangeStart, sess.RangeEnd) {
			continue
		}
		return errors.Newf("%s %s outside available range %s to %s",
			d.field, d.date, sess.RangeStart, sess.RangeEnd).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", d.field).
			Context("value", fmt.Sprint(d.date)).
			Build()
	}
	return nil
}
