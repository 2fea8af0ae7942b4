package ingest

import (
	"context"
	"io"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

// Detection CSV columns
const (
	ColTimestamp      = "Timestamp"
	ColScientificName = "Scientific Name"
	ColConfidence     = "Confidence"
)

// Weather CSV columns
const (
	ColWeatherTime      = "time"
	ColTemperatureMax   = "temperature_2m_max (°C)"
	ColTemperatureMean  = "temperature_2m_mean (°C)"
	ColTemperatureMin   = "temperature_2m_min (°C)"
	ColPrecipitationSum = "precipitation_sum (mm)"
	ColWindSpeedMax     = "wind_speed_10m_max (km/h)"
	ColDaylightDuration = "daylight_duration (s)"
)

// Moon CSV columns
const (
	ColMoonDate  = "date"
	ColMoonIllum = "illum_pct"
	ColMoonPhase = "phase"
)

// WeatherMetadataLines is the number of location metadata lines that precede
// the weather header.
const WeatherMetadataLines = 2

// ParseDetections reads a detections export. Any malformed row fails the
// whole parse.
func ParseDetections(ctx context.Context, r io.Reader) ([]Detection, error) {
	t, err := openTable(InputDetections, r, 0, ColTimestamp, ColScientificName, ColConfidence)
	if err != nil {
		return nil, wrapParseError(asParseError(InputDetections, err))
	}

	var out []Detection
	for {
		rec, err := t.next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(InputDetections, err)
		}

		ts, err := ParseTimestamp(t.field(rec, ColTimestamp))
		if err != nil {
			return nil, wrapParseError(t.fieldError(ColTimestamp, err))
		}
		confidence, err := t.float(rec, ColConfidence)
		if err != nil {
			return nil, wrapParseError(asParseError(InputDetections, err))
		}

		out = append(out, Detection{
			Timestamp:      ts,
			ScientificName: rec[t.index[ColScientificName]],
			Confidence:     confidence,
		})
	}

	return out, nil
}

// ParseWeather reads a daily weather export, skipping the metadata lines
// before the header. Empty numeric cells become NaN.
func ParseWeather(ctx context.Context, r io.Reader) ([]Weather, error) {
	t, err := openTable(InputWeather, r, WeatherMetadataLines,
		ColWeatherTime, ColTemperatureMax, ColTemperatureMean, ColTemperatureMin,
		ColPrecipitationSum, ColWindSpeedMax, ColDaylightDuration)
	if err != nil {
		return nil, wrapParseError(asParseError(InputWeather, err))
	}

	numeric := []string{
		ColTemperatureMax, ColTemperatureMean, ColTemperatureMin,
		ColPrecipitationSum, ColWindSpeedMax, ColDaylightDuration,
	}

	var out []Weather
	values := make([]float64, len(numeric))
	for {
		rec, err := t.next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(InputWeather, err)
		}

		ts, err := ParseTimestamp(t.field(rec, ColWeatherTime))
		if err != nil {
			return nil, wrapParseError(t.fieldError(ColWeatherTime, err))
		}
		for i, column := range numeric {
			if values[i], err = t.optionalFloat(rec, column); err != nil {
				return nil, wrapParseError(asParseError(InputWeather, err))
			}
		}

		out = append(out, Weather{
			Time:             ts,
			TemperatureMax:   values[0],
			TemperatureMean:  values[1],
			TemperatureMin:   values[2],
			Precipitation:    values[3],
			WindSpeedMax:     values[4],
			DaylightDuration: values[5],
		})
	}

	return out, nil
}

// ParseMoon reads a lunar illumination export.
func ParseMoon(ctx context.Context, r io.Reader) ([]Moon, error) {
	t, err := openTable(InputMoon, r, 0, ColMoonDate, ColMoonIllum, ColMoonPhase)
	if err != nil {
		return nil, wrapParseError(asParseError(InputMoon, err))
	}

	var out []Moon
	for {
		rec, err := t.next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(InputMoon, err)
		}

		date, err := ParseTimestamp(t.field(rec, ColMoonDate))
		if err != nil {
			return nil, wrapParseError(t.fieldError(ColMoonDate, err))
		}
		illum, err := t.optionalFloat(rec, ColMoonIllum)
		if err != nil {
			return nil, wrapParseError(asParseError(InputMoon, err))
		}

		out = append(out, Moon{
			Date:         date,
			Illumination: illum,
			Phase:        t.field(rec, ColMoonPhase),
		})
	}

	return out, nil
}

// asParseError returns err as a *ParseError, wrapping foreign errors
func asParseError(input string, err error) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return &ParseError{Input: input, Err: err}
}

// rowError passes context cancellation through unchanged
func rowError(input string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wrapParseError(asParseError(input, err))
}
