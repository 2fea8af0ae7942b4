package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
)

// GetLogger returns the ingest module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("ingest")
}

// Sources holds the three required input streams
type Sources struct {
	Detections io.Reader
	Weather    io.Reader
	Moon       io.Reader
}

// Missing returns the names of absent inputs
func (s Sources) Missing() []string {
	var missing []string
	if s.Detections == nil {
		missing = append(missing, InputDetections)
	}
	if s.Weather == nil {
		missing = append(missing, InputWeather)
	}
	if s.Moon == nil {
		missing = append(missing, InputMoon)
	}
	return missing
}

// Load parses all three inputs concurrently. The first failure cancels the
// remaining parses and no partial dataset is returned.
func Load(ctx context.Context, src Sources) (*Dataset, error) {
	if missing := src.Missing(); len(missing) > 0 {
		return nil, errors.Newf("missing required inputs: %v", missing).
			Component("ingest").
			Category(errors.CategoryValidation).
			Context("missing", missing).
			Build()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	var (
		detections []Detection
		weather    []Weather
		moon       []Moon
	)

	g.Go(func() (err error) {
		detections, err = ParseDetections(gctx, src.Detections)
		return err
	})
	g.Go(func() (err error) {
		weather, err = ParseWeather(gctx, src.Weather)
		return err
	})
	g.Go(func() (err error) {
		moon, err = ParseMoon(gctx, src.Moon)
		return err
	})

	if err := g.Wait(); err != nil {
		GetLogger().Warn("dataset load failed",
			logger.Error(err),
			logger.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	ds := &Dataset{
		Detections: detections,
		Weather:    weather,
		Moon:       moon,
		LoadedAt:   time.Now().UTC(),
	}

	GetLogger().Debug("dataset loaded",
		logger.Int("detections", len(detections)),
		logger.Int("weather", len(weather)),
		logger.Int("moon", len(moon)),
		logger.Duration("elapsed", time.Since(start)))

	return ds, nil
}

// Paths names the three input files on disk
type Paths struct {
	Detections string
	Weather    string
	Moon       string
}

// LoadFiles opens the three files and loads them with Load
func LoadFiles(ctx context.Context, paths Paths) (*Dataset, error) {
	named := []struct {
		input string
		path  string
	}{
		{InputDetections, paths.Detections},
		{InputWeather, paths.Weather},
		{InputMoon, paths.Moon},
	}

	files := make([]*os.File, 0, len(named))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, n := range named {
		if n.path == "" {
			return nil, errors.Newf("no %s file given", n.input).
				Component("ingest").
				Category(errors.CategoryValidation).
				Context("input", n.input).
				Build()
		}
		f, err := os.Open(n.path)
		if err != nil {
			return nil, errors.New(fmt.Errorf("open %s file: %w", n.input, err)).
				Component("ingest").
				Category(errors.CategoryFileIO).
				Context("input", n.input).
				FileContext(n.path, 0).
				Build()
		}
		files = append(files, f)
	}

	return Load(ctx, Sources{Detections: files[0], Weather: files[1], Moon: files[2]})
}
