package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dtsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
name = "range"
role = "server"

[simulation]
frame_rate = "50ms"
time_scale = 2.0

[maps]
dir = "maps"
initial = ["town", "harbor"]
watch = true

[network]
enabled = true
bind_address = "127.0.0.1:9000"

[recorder]
enabled = true
store = "postgres"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "range", cfg.Server.Name)
	assert.Equal(t, RoleServer, cfg.Server.Role)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.FrameRate)
	assert.Equal(t, 2.0, cfg.Simulation.TimeScale)
	assert.Equal(t, []string{"town", "harbor"}, cfg.Maps.Initial)
	assert.True(t, cfg.Maps.Watch)
	assert.Equal(t, "127.0.0.1:9000", cfg.Network.BindAddress)
	assert.Equal(t, "postgres", cfg.Recorder.Store)
	assert.NotZero(t, cfg.Server.StartTime)

	// Untouched sections keep their defaults.
	assert.Equal(t, 256, cfg.Network.OutQueueSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30, cfg.Recorder.FlushEvery)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[server\nname="))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[server]\nrole = \"observer\"\n"))
	assert.ErrorContains(t, err, "unknown role")

	_, err = Load(writeConfig(t, "[simulation]\ntime_scale = 0.0\n"))
	assert.ErrorContains(t, err, "time_scale")

	_, err = Load(writeConfig(t, "[server]\nrole = \"client\"\n[network]\nenabled = true\n"))
	assert.ErrorContains(t, err, "server_address")

	_, err = Load(writeConfig(t, "[recorder]\nstore = \"redis\"\n"))
	assert.ErrorContains(t, err, "recorder store")
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, RoleStandalone, cfg.Server.Role)
	assert.Equal(t, time.Second/60, cfg.Simulation.FrameRate)
}
