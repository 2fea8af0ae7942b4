package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
	reportpkg "github.com/tphakala/birdnet-dashboard/internal/report"
)

const detectionsCSV = "Timestamp,Scientific Name,Common Name,Confidence\n" +
	"2024-05-01 06:10:00,Pitangus sulphuratus,Bem-te-vi,0.91\n" +
	"2024-05-01 06:10:30,Pitangus sulphuratus,Bem-te-vi,0.85\n" +
	"2024-05-02 17:45:00,Turdus rufiventris,Sabiá-laranjeira,0.40\n" +
	"2024-05-03 06:20:00,Zonotrichia capensis,Tico-tico,0.95\n"

const weatherCSV = "latitude,longitude,elevation,utc_offset_seconds,timezone,timezone_abbreviation\n" +
	"-23.5,-46.625,760.0,0,GMT,GMT\n" +
	"\n" +
	"time,temperature_2m_max (°C),temperature_2m_mean (°C),temperature_2m_min (°C),precipitation_sum (mm),wind_speed_10m_max (km/h),daylight_duration (s)\n" +
	"2024-05-01,24.1,19.5,15.2,0.0,12.3,39600.0\n" +
	"2024-05-02,22.0,18.0,14.0,1.2,10.1,39420.0\n" +
	"2024-05-03,23.0,18.5,14.5,0.0,9.0,39300.0\n"

const moonCSV = "date,illum_pct,phase\n" +
	"2024-05-01,42.5,waning_crescent\n" +
	"2024-05-02,33.0,waning_crescent\n" +
	"2024-05-03,24.1,waning_crescent\n"

func writeInputs(t *testing.T) ingest.Paths {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	return ingest.Paths{
		Detections: write("detections.csv", detectionsCSV),
		Weather:    write("weather.csv", weatherCSV),
		Moon:       write("moon.csv", moonCSV),
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	settings := &conf.Settings{
		Dashboard: conf.DashboardSettings{WeatherView: "temperature", Locale: "pt-BR"},
	}
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReportCommandWritesFiles(t *testing.T) {
	t.Parallel()
	paths := writeInputs(t)
	outDir := filepath.Join(t.TempDir(), "report")

	out, err := execute(t,
		"--detections", paths.Detections,
		"--weather", paths.Weather,
		"--moon", paths.Moon,
		"--dedup", "1min",
		"--out", outDir)
	require.NoError(t, err)

	assert.Contains(t, out, "3 records, 3 species, 2024-05-01 to 2024-05-03")
	assert.FileExists(t, filepath.Join(outDir, reportpkg.DashboardHTML))
	assert.FileExists(t, filepath.Join(outDir, reportpkg.SummaryYAML))
}

func TestReportCommandRequiresInputs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detections")
}

func TestReportCommandRejectsBadView(t *testing.T) {
	t.Parallel()
	paths := writeInputs(t)

	_, err := execute(t,
		"--detections", paths.Detections,
		"--weather", paths.Weather,
		"--moon", paths.Moon,
		"--view", "humidity",
		"--out", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()
	paths := writeInputs(t)
	ds, err := ingest.LoadFiles(t.Context(), paths)
	require.NoError(t, err)

	tests := []struct {
		name      string
		flags     Flags
		wantStart pipeline.Date
		wantEnd   pipeline.Date
		wantErr   bool
	}{
		{
			name:      "defaults to detection range",
			flags:     Flags{},
			wantStart: pipeline.NewDate(2024, 5, 1),
			wantEnd:   pipeline.NewDate(2024, 5, 3),
		},
		{
			name:      "explicit dates",
			flags:     Flags{From: "2024-05-02", To: "2024-05-02"},
			wantStart: pipeline.NewDate(2024, 5, 2),
			wantEnd:   pipeline.NewDate(2024, 5, 2),
		},
		{
			name:      "preset wins over dates",
			flags:     Flags{From: "2024-05-03", Preset: "last_day"},
			wantStart: pipeline.NewDate(2024, 5, 2),
			wantEnd:   pipeline.NewDate(2024, 5, 3),
		},
		{
			name:      "preset clamped to first detection",
			flags:     Flags{Preset: "last_month"},
			wantStart: pipeline.NewDate(2024, 5, 1),
			wantEnd:   pipeline.NewDate(2024, 5, 3),
		},
		{name: "bad date", flags: Flags{From: "01/05/2024"}, wantErr: true},
		{name: "reversed range", flags: Flags{From: "2024-05-03", To: "2024-05-01"}, wantErr: true},
		{name: "unknown preset", flags: Flags{Preset: "last_year"}, wantErr: true},
		{name: "unknown dedup", flags: Flags{Dedup: "5min"}, wantErr: true},
		{name: "threshold above one", flags: Flags{Threshold: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := tt.flags
			f.Paths = paths
			cfg, err := buildFilter(ds, &f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, cfg.StartDate)
			assert.Equal(t, tt.wantEnd, cfg.EndDate)
		})
	}
}
