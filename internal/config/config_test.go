package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[backend]
scenario = "scenarios/towers.lua"
seed = 42

[world]
tick_rate_hz = 30.0
defeat_radius = 25.0

[network]
read_timeout = "90s"
`))
	require.NoError(t, err)
	assert.Equal(t, "scenarios/towers.lua", cfg.Backend.Scenario)
	assert.Equal(t, uint64(42), cfg.Backend.Seed)
	assert.Equal(t, "auto", cfg.Backend.ActionStyle)
	assert.Equal(t, 25.0, cfg.World.DefeatRadius)
	assert.Equal(t, 100.0, cfg.World.VictoryReward)
	assert.InDelta(t, 1.0/30, cfg.World.DeltaT(), 1e-12)
	assert.Equal(t, 90*time.Second, cfg.Network.ReadTimeout)
	assert.Equal(t, "/ws", cfg.Network.Path)
	assert.False(t, cfg.Database.Enabled)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"syntax":     "[world\nwidth = 1",
		"width":      "[world]\nwidth = 0.0",
		"cell size":  "[world]\ncell_size = -1.0",
		"tick rate":  "[world]\ntick_rate_hz = 0.0",
		"queue size": "[network]\nin_queue_size = 0",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, Path())

	path := filepath.Join(t.TempDir(), "backend.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nformat = \"json\"\n"), 0o644))
	t.Setenv(EnvPath, path)
	assert.Equal(t, path, Path())
	cfg, err := Load(Path())
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, Default().World, cfg.World)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	cfg, err := Load(filepath.Join(filepath.Dir(file), "..", "..", "config", "backend.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaults(), cfg)
}
