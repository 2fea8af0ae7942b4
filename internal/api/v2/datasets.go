// datasets.go: dataset upload endpoint

package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/observability/metrics"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// MsgFilesRequired is returned when an upload lacks one of the three CSV parts
const MsgFilesRequired = "all three CSV files are required"

// DateRange is an inclusive date range
type DateRange struct {
	Start pipeline.Date `json:"start"`
	End   pipeline.Date `json:"end"`
}

// DatasetResponse is returned after a successful upload
type DatasetResponse struct {
	SessionID     string                `json:"session_id"`
	Range         DateRange             `json:"range"`
	Filter        pipeline.FilterConfig `json:"filter"`
	Species       []string              `json:"species"`
	CommonSpecies []string              `json:"common_species"`
	Counts        ingest.Counts         `json:"counts"`
}

func (c *Controller) initDatasetRoutes() {
	if c.uploadLimiter != nil {
		c.Group.POST("/datasets", c.UploadDataset, c.uploadLimiter)
		return
	}
	c.Group.POST("/datasets", c.UploadDataset)
}

// UploadDataset handles POST /api/v2/datasets. The request is a multipart
// form with the files detections, weather and moon.
func (c *Controller) UploadDataset(ctx echo.Context) error {
	start := time.Now()
	rec := c.recorder()

	headers := make(map[string]*multipart.FileHeader, 3)
	for _, name := range []string{ingest.InputDetections, ingest.InputWeather, ingest.InputMoon} {
		fh, err := ctx.FormFile(name)
		if err != nil {
			rec.RecordOperation(metrics.OpIngest, metrics.StatusError)
			rec.RecordError(metrics.OpIngest, string(errors.CategoryValidation))
			return c.HandleError(ctx,
				errors.Newf("missing form file %q", name).
					Component("api").
					Category(errors.CategoryValidation).
					Context("field", name).
					Build(),
				MsgFilesRequired, http.StatusBadRequest)
		}
		headers[name] = fh
	}

	files := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	open := func(name string) (io.Reader, error) {
		f, err := headers[name].Open()
		if err != nil {
			return nil, errors.New(err).
				Component("api").
				Category(errors.CategoryFileIO).
				Context("field", name).
				Build()
		}
		files = append(files, f)
		return f, nil
	}

	var src ingest.Sources
	var err error
	if src.Detections, err = open(ingest.InputDetections); err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusInternalServerError)
	}
	if src.Weather, err = open(ingest.InputWeather); err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusInternalServerError)
	}
	if src.Moon, err = open(ingest.InputMoon); err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusInternalServerError)
	}

	ds, err := ingest.Load(ctx.Request().Context(), src)
	if err != nil {
		rec.RecordOperation(metrics.OpIngest, metrics.StatusError)
		rec.RecordError(metrics.OpIngest, errorType(err))
		code := statusFor(err)
		if code == http.StatusBadRequest {
			code = http.StatusUnprocessableEntity
		}
		return c.HandleError(ctx, err, "Failed to parse dataset", code)
	}

	sess, err := c.Store.Create(ds)
	if err != nil {
		rec.RecordOperation(metrics.OpSessionCreate, metrics.StatusError)
		rec.RecordError(metrics.OpSessionCreate, errorType(err))
		code := http.StatusInternalServerError
		if errors.IsCategory(err, errors.CategoryValidation) {
			code = http.StatusUnprocessableEntity
		}
		return c.HandleError(ctx, err, "Dataset cannot be used", code)
	}

	var size int64
	for _, fh := range headers {
		size += fh.Size
	}
	counts := ds.Counts()

	rec.RecordOperation(metrics.OpIngest, metrics.StatusSuccess)
	rec.RecordDuration(metrics.OpIngest, time.Since(start).Seconds())
	rec.RecordOperation(metrics.OpSessionCreate, metrics.StatusSuccess)
	if c.metrics != nil {
		c.metrics.Dashboard.RecordIngest(counts.Detections, counts.Weather, counts.Moon, size)
		c.metrics.Dashboard.SetActiveSessions(c.Store.Count())
	}

	c.logger.Info("dataset uploaded",
		logger.String("session_id", sess.ID),
		logger.Int("detections", counts.Detections),
		logger.Int("weather", counts.Weather),
		logger.Int("moon", counts.Moon),
		logger.Int64("bytes", size),
		logger.Duration("elapsed", time.Since(start)))

	return ctx.JSON(http.StatusCreated, DatasetResponse{
		SessionID:     sess.ID,
		Range:         DateRange{Start: sess.RangeStart, End: sess.RangeEnd},
		Filter:        sess.Filter(),
		Species:       pipeline.SpeciesOptions(ds, false),
		CommonSpecies: pipeline.SpeciesOptions(ds, true),
		Counts:        counts,
	})
}
