package errors

import (
	"fmt"
	"strings"
	"testing"
)

type countingReporter struct {
	reported []*EnhancedError
}

func (r *countingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *countingReporter) IsEnabled() bool              { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic', got '%s'", ee.Category)
	}
}

func TestBuilderContextAndCategory(t *testing.T) {
	ee := Newf("column %q missing", "Confidence").
		Component("ingest").
		Category(CategoryFileParsing).
		Context("input", "detections").
		FileContext("/tmp/uploads/detections.csv", 2048).
		Build()

	if ee.GetComponent() != "ingest" {
		t.Errorf("Expected component 'ingest', got '%s'", ee.GetComponent())
	}
	if !IsCategory(ee, CategoryFileParsing) {
		t.Errorf("Expected file-parsing category, got '%s'", ee.Category)
	}

	ctx := ee.GetContext()
	if ctx["input"] != "detections" {
		t.Errorf("Expected input context 'detections', got %v", ctx["input"])
	}
	if ctx["file_name"] != "detections.csv" {
		t.Errorf("Expected base file name only, got %v", ctx["file_name"])
	}
	if ctx["file_size_category"] != "small" {
		t.Errorf("Expected size category 'small', got %v", ctx["file_size_category"])
	}

	// Returned context is a copy
	ctx["input"] = "changed"
	if ee.GetContext()["input"] != "detections" {
		t.Error("GetContext must return a copy")
	}
}

func TestCategoryDetectionFromChain(t *testing.T) {
	inner := New(NewStd("session expired")).Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("lookup: %w", inner)).Build()

	if outer.Category != CategoryNotFound {
		t.Errorf("Expected category inherited from wrapped error, got '%s'", outer.Category)
	}
	if !IsNotFound(outer) {
		t.Error("IsNotFound should match through the builder")
	}
	if !Is(outer, inner) {
		t.Error("Is should find the wrapped enhanced error")
	}

	parse := New(fmt.Errorf("parse error on line 3")).Build()
	if parse.Category != CategoryFileParsing {
		t.Errorf("Expected heuristic file-parsing category, got '%s'", parse.Category)
	}
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &countingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("render failed")).Category(CategoryRender).Build()

	if len(reporter.reported) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(reporter.reported))
	}
	if reporter.reported[0].Category != CategoryRender {
		t.Errorf("Unexpected category %s", reporter.reported[0].Category)
	}
}

func TestSentryReporterSkipsUserErrors(t *testing.T) {
	if isReportable(CategoryValidation) || isReportable(CategoryFileParsing) || isReportable(CategoryNotFound) {
		t.Error("user-caused categories must not be reported")
	}
	if !isReportable(CategorySystem) {
		t.Error("system errors must be reported")
	}
}

func TestScrubMessage(t *testing.T) {
	msg := scrubMessage("failed https://example.com/api?token=abc from /home/alice/data.csv dsn=https://key@sentry.io/1")
	for _, leaked := range []string{"token=abc", "alice", "key@sentry"} {
		if strings.Contains(msg, leaked) {
			t.Errorf("scrubbed message still contains %q: %s", leaked, msg)
		}
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("boom")).
		Component("report").
		Category(CategoryRender).
		Context("operation", "write_png").
		Build()

	if got := generateErrorTitle(ee); got != "Report Render Error Write Png" {
		t.Errorf("Unexpected title %q", got)
	}
}
