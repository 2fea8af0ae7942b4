package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
)

const testDSN = "https://public@sentry.example.com/1"

// These tests share the global Sentry hub and must not run in parallel.

func TestInitSentryDisabled(t *testing.T) {
	settings := &conf.Settings{}
	require.NoError(t, InitSentry(settings, "test"))
	assert.False(t, IsEnabled())
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitSentryReportsErrors(t *testing.T) {
	transport := NewMockTransport()
	settings := &conf.Settings{Sentry: conf.SentrySettings{Enabled: true, DSN: testDSN}}
	require.NoError(t, initSentry(settings, "test", transport))
	t.Cleanup(func() { Flush(FlushTimeout) })
	require.True(t, IsEnabled())

	_ = errors.Newf("render failed for /home/alice/data.csv").
		Component("report").
		Category(errors.CategoryRender).
		Build()

	// user input errors are never reported
	_ = errors.Newf("bad upload").
		Component("ingest").
		Category(errors.CategoryFileParsing).
		Build()

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "chart-render")
	assert.NotContains(t, events[0].Message, "alice")
	assert.Equal(t, "report", events[0].Tags["component"])
}

func TestInitSentryRejectsBadDSN(t *testing.T) {
	settings := &conf.Settings{Sentry: conf.SentrySettings{Enabled: true, DSN: "::not a dsn"}}
	err := initSentry(settings, "test", NewMockTransport())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, IsEnabled())
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := &sentry.Event{
		ServerName: "station-1",
		User:       sentry.User{ID: "42", IPAddress: "10.0.0.1"},
		Contexts: map[string]sentry.Context{
			"os":     {"name": "linux"},
			"device": {"arch": "arm64"},
			"app":    {"name": "dashboard"},
		},
		Extra: map[string]any{"component": "api", "path": "/home/x"},
		Tags:  map[string]string{"hostname": "pi", "category": "http"},
	}

	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "os")
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "app")
	assert.Equal(t, map[string]any{"component": "api"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "http"}, out.Tags)
}
