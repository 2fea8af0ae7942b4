package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

const (
	utf8BOM = "\ufeff"

	// ctxCheckInterval is how many rows are read between cancellation checks
	ctxCheckInterval = 1024
)

// table is a header-indexed view over a CSV stream
type table struct {
	input      string
	reader     *csv.Reader
	index      map[string]int
	lineOffset int
	rows       int
}

// openTable skips skipLines raw lines, reads the header and verifies that
// every required column is present.
func openTable(input string, r io.Reader, skipLines int, required ...string) (*table, error) {
	br := bufio.NewReader(r)
	for i := range skipLines {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &ParseError{Input: input, Line: i + 1, Err: fmt.Errorf("file ends before header")}
			}
			return nil, &ParseError{Input: input, Err: err}
		}
	}

	cr := csv.NewReader(br)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Input: input, Line: skipLines + 1, Err: fmt.Errorf("missing header row")}
		}
		return nil, csvError(input, skipLines, err)
	}

	t := &table{
		input:      input,
		reader:     cr,
		index:      make(map[string]int, len(header)),
		lineOffset: skipLines,
	}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for _, name := range required {
		if _, ok := t.index[name]; !ok {
			return nil, &ParseError{
				Input:  input,
				Line:   skipLines + 1,
				Column: name,
				Err:    ErrMissingColumn,
			}
		}
	}

	return t, nil
}

// next returns the next record, or io.EOF at the end of the stream
func (t *table) next(ctx context.Context) ([]string, error) {
	if t.rows%ctxCheckInterval == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	rec, err := t.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, csvError(t.input, t.lineOffset, err)
	}
	t.rows++
	return rec, nil
}

// line returns the file line of the record most recently returned by next
func (t *table) line() int {
	line, _ := t.reader.FieldPos(0)
	return line + t.lineOffset
}

func (t *table) field(rec []string, column string) string {
	return strings.TrimSpace(rec[t.index[column]])
}

func (t *table) fieldError(column string, err error) *ParseError {
	return &ParseError{Input: t.input, Line: t.line(), Column: column, Err: err}
}

// float parses a required numeric column
func (t *table) float(rec []string, column string) (float64, error) {
	v, err := strconv.ParseFloat(t.field(rec, column), 64)
	if err != nil {
		return 0, t.fieldError(column, err)
	}
	return v, nil
}

// optionalFloat parses a numeric column where an empty cell means missing (NaN)
func (t *table) optionalFloat(rec []string, column string) (float64, error) {
	raw := t.field(rec, column)
	if raw == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, t.fieldError(column, err)
	}
	return v, nil
}

func csvError(input string, lineOffset int, err error) *ParseError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Input: input, Line: pe.Line + lineOffset, Err: pe.Err}
	}
	return &ParseError{Input: input, Err: err}
}
