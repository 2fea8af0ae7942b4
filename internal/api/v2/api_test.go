package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/observability"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const detectionsCSV = "Timestamp,Scientific Name,Common Name,Confidence\n" +
	"2024-05-01 06:10:00,Pitangus sulphuratus,Bem-te-vi,0.91\n" +
	"2024-05-01 06:10:30,Pitangus sulphuratus,Bem-te-vi,0.85\n" +
	"2024-05-02 17:45:00,Turdus rufiventris,Sabiá-laranjeira,0.40\n" +
	"2024-05-03 06:20:00,Zonotrichia capensis,Tico-tico,0.95\n"

const weatherCSV = "latitude,longitude,elevation\n" +
	"-23.5,-46.625,760.0\n" +
	"time,temperature_2m_max (°C),temperature_2m_mean (°C),temperature_2m_min (°C),precipitation_sum (mm),wind_speed_10m_max (km/h),daylight_duration (s)\n" +
	"2024-05-01,24.1,19.5,15.2,0.0,12.3,39600.0\n" +
	"2024-05-02,,18.0,14.0,2.5,10.1,39420.0\n" +
	"2024-05-03,23.0,18.5,14.5,0.0,8.0,39300.0\n"

const moonCSV = "date,illum_pct,phase\n" +
	"2024-05-01,42.5,waning_crescent\n" +
	"2024-05-02,,waning_crescent\n" +
	"2024-05-03,20.0,new\n"

type testEnv struct {
	e          *echo.Echo
	controller *Controller
	metrics    *observability.Metrics
}

func newTestSettings() *conf.Settings {
	return &conf.Settings{
		Dashboard: conf.DashboardSettings{
			TopSpecies:   20,
			RecentLifers: 5,
			Locale:       "pt-BR",
			WeatherView:  "temperature",
		},
	}
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	c, err := New(e, newTestSettings(), WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	return &testEnv{e: e, controller: c, metrics: m}
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, files map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/datasets", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func validFiles() map[string]string {
	return map[string]string{
		"detections": detectionsCSV,
		"weather":    weatherCSV,
		"moon":       moonCSV,
	}
}

// upload creates a session from the fixture files and returns its ID
func (env *testEnv) upload(t *testing.T) string {
	t.Helper()
	rec := env.do(t, multipartUpload(t, validFiles()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestUploadDataset(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	rec := env.do(t, multipartUpload(t, validFiles()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, pipeline.NewDate(2024, 5, 1), resp.Range.Start)
	assert.Equal(t, pipeline.NewDate(2024, 5, 3), resp.Range.End)
	assert.Equal(t, pipeline.DedupNone, resp.Filter.DedupMode)
	assert.Equal(t, []string{"Pitangus sulphuratus", "Turdus rufiventris", "Zonotrichia capensis"}, resp.Species)
	assert.Empty(t, resp.CommonSpecies)
	assert.Equal(t, 4, resp.Counts.Detections)
	assert.Equal(t, 3, resp.Counts.Weather)
	assert.Equal(t, 3, resp.Counts.Moon)

	expected := `
# HELP dashboard_active_sessions Current number of dashboard sessions
# TYPE dashboard_active_sessions gauge
dashboard_active_sessions 1
# HELP dashboard_ingest_rows_total Total number of CSV rows loaded
# TYPE dashboard_ingest_rows_total counter
dashboard_ingest_rows_total{input="detections"} 4
dashboard_ingest_rows_total{input="moon"} 3
dashboard_ingest_rows_total{input="weather"} 3
`
	require.NoError(t, testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected),
		"dashboard_active_sessions", "dashboard_ingest_rows_total"))
}

func TestUploadDatasetMissingFile(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	files := validFiles()
	delete(files, "moon")

	rec := env.do(t, multipartUpload(t, files))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, MsgFilesRequired, resp.Message)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, resp.CorrelationID, 8)
	assert.Zero(t, env.controller.Store.Count())
}

func TestUploadDatasetNotMultipart(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	rec := env.do(t, jsonRequest(http.MethodPost, "/api/v2/datasets", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgFilesRequired, decodeError(t, rec).Message)
}

func TestUploadDatasetParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		replace   map[string]string
		want      string
		wantError string
	}{
		{
			name:      "bad timestamp",
			replace:   map[string]string{"detections": "Timestamp,Scientific Name,Confidence\nyesterday,Pitangus sulphuratus,0.9\n"},
			want:      "detections",
			wantError: `dashboard_operation_errors_total{error_type="file-parsing",operation="ingest"} 1`,
		},
		{
			name:      "missing column",
			replace:   map[string]string{"moon": "date,phase\n2024-05-01,new\n"},
			want:      "illum_pct",
			wantError: `dashboard_operation_errors_total{error_type="file-parsing",operation="ingest"} 1`,
		},
		{
			name:      "empty detections",
			replace:   map[string]string{"detections": "Timestamp,Scientific Name,Confidence\n"},
			want:      "no records",
			wantError: `dashboard_operation_errors_total{error_type="validation",operation="session_create"} 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestEnvironment(t)

			files := validFiles()
			for k, v := range tt.replace {
				files[k] = v
			}

			rec := env.do(t, multipartUpload(t, files))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Contains(t, decodeError(t, rec).Error, tt.want)
			assert.Zero(t, env.controller.Store.Count())

			expected := `
# HELP dashboard_operation_errors_total Total number of dashboard operation errors
# TYPE dashboard_operation_errors_total counter
` + tt.wantError + "\n"
			require.NoError(t, testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected),
				"dashboard_operation_errors_total"))
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, pipeline.NewDate(2024, 5, 1), resp.Filter.StartDate)
	assert.Equal(t, pipeline.Presets, resp.Presets)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v2/sessions/"+id, http.NoBody))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id, http.NoBody))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v2/sessions/"+id, http.NoBody))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	for _, path := range []string{"/summary", "/analytics/hourly", "/moon", "/dashboard"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/nope"+path, http.NoBody))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestUpdateFilter(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, jsonRequest(http.MethodPut, "/api/v2/sessions/"+id+"/filter",
		`{"dedup_mode":"1min","confidence_threshold":0.5,"selected_species":["Pitangus sulphuratus"]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.DedupOneMinute, resp.Filter.DedupMode)
	assert.InDelta(t, 0.5, resp.Filter.ConfidenceThreshold, 0)
	assert.Equal(t, []string{"Pitangus sulphuratus"}, resp.Filter.SelectedSpecies)
	// unset fields keep their value
	assert.Equal(t, pipeline.NewDate(2024, 5, 1), resp.Filter.StartDate)
	assert.Equal(t, pipeline.NewDate(2024, 5, 3), resp.Filter.EndDate)

	// the two Pitangus records fall in one minute bucket
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/summary", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Metrics.TotalRecords)
}

func TestUpdateFilterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"start after end", `{"start_date":"2024-05-03","end_date":"2024-05-01"}`},
		{"start before range", `{"start_date":"2024-04-30"}`},
		{"end after range", `{"end_date":"2024-05-04"}`},
		{"malformed date", `{"start_date":"05/01/2024"}`},
		{"threshold above one", `{"confidence_threshold":1.5}`},
		{"negative threshold", `{"confidence_threshold":-0.1}`},
		{"unknown dedup", `{"dedup_mode":"5min"}`},
		{"malformed json", `{"dedup_mode":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := setupTestEnvironment(t)
			id := env.upload(t)

			rec := env.do(t, jsonRequest(http.MethodPut, "/api/v2/sessions/"+id+"/filter", tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			// the stored filter is unchanged
			sess, err := env.controller.Store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, pipeline.NewFilterConfig(pipeline.NewDate(2024, 5, 1), pipeline.NewDate(2024, 5, 3)), sess.Filter())
		})
	}
}

func TestApplyFilterPreset(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v2/sessions/"+id+"/filter/preset/last_day", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.NewDate(2024, 5, 2), resp.Filter.StartDate)
	assert.Equal(t, pipeline.NewDate(2024, 5, 3), resp.Filter.EndDate)

	// a week before the last detection is clamped to the first detection
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v2/sessions/"+id+"/filter/preset/last_week", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.NewDate(2024, 5, 1), resp.Filter.StartDate)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v2/sessions/"+id+"/filter/preset/fortnight", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSummary(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/summary", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Metrics pipeline.Metrics `json:"metrics"`
		Quality struct {
			MeanConfidence      *float64 `json:"mean_confidence"`
			Score               int      `json:"score"`
			HighConfidenceShare *float64 `json:"high_confidence_share"`
		} `json:"quality"`
		RecentLifers []LiferResponse `json:"recent_lifers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 4, resp.Metrics.TotalRecords)
	assert.Equal(t, 3, resp.Metrics.UniqueSpecies)
	require.NotNil(t, resp.Quality.MeanConfidence)
	assert.InDelta(t, 0.7775, *resp.Quality.MeanConfidence, 1e-9)
	require.NotNil(t, resp.Quality.HighConfidenceShare)
	assert.InDelta(t, 0.75, *resp.Quality.HighConfidenceShare, 1e-9)

	require.Len(t, resp.RecentLifers, 3)
	assert.Equal(t, "Zonotrichia capensis", resp.RecentLifers[0].ScientificName)
	assert.Equal(t, "03/05/2024 06:20", resp.RecentLifers[0].Display)
}

func TestGetSummaryEmptyFilterHasNullQuality(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, jsonRequest(http.MethodPut, "/api/v2/sessions/"+id+"/filter", `{"selected_species":["Columba livia"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/summary", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mean_confidence":null`)
	assert.Contains(t, rec.Body.String(), `"recent_lifers":[]`)
}

func TestGetSpeciesAnalytics(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/analytics/species?limit=2", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SpeciesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []pipeline.SpeciesCount{
		{ScientificName: "Pitangus sulphuratus", Count: 2},
		{ScientificName: "Turdus rufiventris", Count: 1},
	}, resp.Species)

	for _, bad := range []string{"0", "-1", "abc", "5000"} {
		rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/analytics/species?limit="+bad, http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestGetHourlyAnalytics(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/analytics/hourly", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var hours []pipeline.HourCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hours))
	require.Len(t, hours, 24)
	assert.Equal(t, 3, hours[6].Count)
	assert.Equal(t, 1, hours[17].Count)

	total := 0
	for _, h := range hours {
		total += h.Count
	}
	assert.Equal(t, 4, total)
}

func TestGetDailyAnalytics(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/analytics/daily", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DailyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Daily, 3)
	assert.Equal(t, 2, resp.Daily[0].Count)
	require.Len(t, resp.DailyUnique, 3)
	assert.Equal(t, 1, resp.DailyUnique[0].Species)
}

func TestGetWeather(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/weather", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WeatherResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "temperature", string(resp.View))
	require.Len(t, resp.Points, 3)
	require.NotNil(t, resp.Points[0].TemperatureMax)
	assert.InDelta(t, 24.1, *resp.Points[0].TemperatureMax, 1e-9)
	assert.Nil(t, resp.Points[1].TemperatureMax, "empty cell is omitted")
	assert.Nil(t, resp.Points[0].Precipitation)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/weather?view=wind", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Points[0].DaylightHours)
	assert.InDelta(t, 11.0, *resp.Points[0].DaylightHours, 1e-9)
	assert.Nil(t, resp.Points[0].DayLengthHours, "no location configured")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/weather?view=humidity", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMoon(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/moon", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MoonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Illumination, 3)
	assert.Nil(t, resp.Illumination[1].Illumination)
	assert.Equal(t, []pipeline.Date{pipeline.NewDate(2024, 5, 3)}, resp.NewMoons)
	assert.Empty(t, resp.FullMoons)
}

func TestGetDashboard(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	id := env.upload(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/dashboard?view=precipitation", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML)

	body := rec.Body.String()
	assert.Contains(t, body, "Dashboard de Detecções de Aves")
	assert.Contains(t, body, "#1e1e2f")
	assert.Contains(t, body, "Precipitação")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+id+"/dashboard?view=nope", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)
	env.upload(t)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := env.e.NewContext(req, rec)

	require.NoError(t, env.controller.HealthCheck(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.InDelta(t, 1, resp["sessions"], 0)
	assert.Contains(t, resp, "uptime_seconds")
}

func TestHandleErrorDirect(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/sessions/x", http.NoBody)
	rec := httptest.NewRecorder()
	ctx := env.e.NewContext(req, rec)
	ctx.SetPath("/api/v2/sessions/:id")
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	require.NoError(t, env.controller.GetSession(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "session not found")
	assert.Equal(t, "Session not found", resp.Message)
}

func TestErrorType(t *testing.T) {
	t.Parallel()

	err := errors.Newf("bad view").Category(errors.CategoryValidation).Build()
	assert.Equal(t, "validation", errorType(err))
	assert.Equal(t, "validation", errorType(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "generic", errorType(errors.NewStd("plain")))
}
