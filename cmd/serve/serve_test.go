package serve

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-dashboard/internal/conf"
)

func loadSettings(t *testing.T) (*conf.Settings, string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webserver:\n  port: \"8080\"\n"), 0o600))
	settings, err := conf.LoadFrom(path)
	require.NoError(t, err)
	return settings, path
}

func TestSaveConfigFlag(t *testing.T) {
	settings, path := loadSettings(t)

	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.ParseFlags([]string{"--save-config"}))

	settings.WebServer.Port = "9443"
	require.NoError(t, saveConfig(cmd, settings))
	assert.Contains(t, out.String(), path)

	viper.Reset()
	reloaded, err := conf.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "9443", reloaded.WebServer.Port)
}

func TestSaveConfigFlagUnset(t *testing.T) {
	settings, path := loadSettings(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cmd := Command(settings)
	require.NoError(t, cmd.ParseFlags(nil))

	settings.WebServer.Port = "9443"
	require.NoError(t, saveConfig(cmd, settings))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
