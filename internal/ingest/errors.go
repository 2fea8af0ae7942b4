package ingest

import (
	"fmt"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

// Input names used in errors and logs
const (
	InputDetections = "detections"
	InputWeather    = "weather"
	InputMoon       = "moon"
)

// ParseError describes the first failure while reading one input
type ParseError struct {
	Input  string // detections, weather or moon
	Line   int    // 1-based line in the original file, 0 when unknown
	Column string // column name, empty for structural errors
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("%s: line %d, column %q: %v", e.Input, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %v", e.Input, e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("%s: column %q: %v", e.Input, e.Column, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Input, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrorCategory implements errors.CategorizedError
func (e *ParseError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryFileParsing
}

// ErrMissingColumn is wrapped by ParseError when a required header is absent
var ErrMissingColumn = errors.NewStd("missing required column")

func wrapParseError(pe *ParseError) error {
	b := errors.New(pe).
		Component("ingest").
		Category(errors.CategoryFileParsing).
		Context("input", pe.Input)
	if pe.Line > 0 {
		b = b.Context("line", pe.Line)
	}
	if pe.Column != "" {
		b = b.Context("column", pe.Column)
	}
	return b.Build()
}
