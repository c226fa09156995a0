package data

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/skyrts/backend/internal/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenarioSpawns(t *testing.T) {
	s, err := ParseScenario([]byte(`
unit_types:
  - tag: scout
spawns:
  - unit_type: scout
    faction: 1
    x: 100
    y: 200
    count: 3
    randomx: 10
`))
	require.NoError(t, err)

	desc, err := s.Init()
	require.NoError(t, err)
	assert.Len(t, desc.UnitTypes, 1)

	units, err := s.Reset(rng.New(4))
	require.NoError(t, err)
	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, "scout", u.UnitType)
		assert.Equal(t, 1, u.Faction)
		assert.Equal(t, 200.0, u.Pos.Y)
		assert.InDelta(t, 100.0, u.Pos.X, 10)
	}
}

func TestParseScenarioRejects(t *testing.T) {
	cases := map[string]string{
		"unknown type":  "unit_types: [{tag: a}]\nspawns: [{unit_type: b}]",
		"bad faction":   "unit_types: [{tag: a}]\nspawns: [{unit_type: a, faction: 5}]",
		"negative":      "unit_types: [{tag: a}]\nspawns: [{unit_type: a, count: -1}]",
		"duplicate tag": "unit_types: [{tag: a}, {tag: a}]",
		"not yaml":      "unit_types: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "one.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unit_types: [{tag: a}]\nspawns: [{unit_type: a}]\n"), 0o644))
	s, err := LoadScenario(path)
	require.NoError(t, err)
	units, err := s.Reset(rng.New(1))
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestTowersData(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	s, err := LoadScenario(filepath.Join(filepath.Dir(file), "..", "..", "scenarios", "towers.yaml"))
	require.NoError(t, err)
	units, err := s.Reset(rng.New(2))
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, 2, units[2].Faction)
}
