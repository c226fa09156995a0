package scripting

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/skyrts/backend/internal/rng"
	"github.com/skyrts/backend/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fixedScript = `
function init()
  return {
    unit_types = {
      { tag = "scout" },
      { tag = "wall", can_move = false, death_penalty = -4,
        shape = { body = "rect", width = 6, height = 2 } },
    },
  }
end

function reset(rng)
  return {
    { unit_type = "scout", pos = { x = 10, y = 20 }, faction = 0 },
    { unit_type = "wall", pos = { x = rng.gen_range(0, 1), y = rng:random() }, faction = 1 },
  }
end
`

func TestEngineInit(t *testing.T) {
	e, err := NewEngineFromSource("fixed", fixedScript, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	desc, err := e.Init()
	require.NoError(t, err)
	assert.Equal(t, scenario.DefaultFactions, desc.FactionCount())
	require.Len(t, desc.UnitTypes, 2)

	table, err := desc.UnitTypesTable()
	require.NoError(t, err)
	wall, ok := table.Get("wall")
	require.True(t, ok)
	assert.False(t, wall.Movable)
	assert.Equal(t, 4.0, wall.KillReward)
	assert.Equal(t, 6.0, wall.Shape.Width)
}

func TestEngineReset(t *testing.T) {
	e, err := NewEngineFromSource("fixed", fixedScript, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	units, err := e.Reset(rng.New(1))
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, scenario.UnitSpec{UnitType: "scout", Pos: scenario.Pos{X: 10, Y: 20}}, units[0])
	assert.Equal(t, 1, units[1].Faction)
	assert.GreaterOrEqual(t, units[1].Pos.X, 0.0)
	assert.Less(t, units[1].Pos.X, 1.0)
}

func TestEngineErrors(t *testing.T) {
	cases := map[string]string{
		"missing init":  `function reset(rng) return {} end`,
		"non table":     `function init() return 5 end`,
		"bad field":     `function init() return { unit_types = { { tag = "a", max_hp = "lots" } } } end`,
		"runtime error": `function init() error("boom") end`,
		"no unit types": `function init() return { factions = 2 } end`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			e, err := NewEngineFromSource(name, src, zap.NewNop())
			require.NoError(t, err)
			defer e.Close()
			_, err = e.Init()
			assert.Error(t, err)
		})
	}

	_, err := NewEngineFromSource("syntax", `function init(`, zap.NewNop())
	assert.Error(t, err)
}

func TestEngineResetRejectsBadUnits(t *testing.T) {
	e, err := NewEngineFromSource("bad", `
function reset(rng)
  return { { unit_type = "a", pos = { x = 1 } } }
end`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	_, err = e.Reset(rng.New(1))
	assert.ErrorContains(t, err, "pos.y")
}

func TestEngineEmptyRangeRaises(t *testing.T) {
	e, err := NewEngineFromSource("empty", `
function reset(rng)
  rng:gen_int(3, 3)
  return {}
end`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	_, err = e.Reset(rng.New(1))
	assert.Error(t, err)
}

func TestTowersScript(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "scenarios", "towers.lua")
	e, err := NewEngine(path, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	desc, err := e.Init()
	require.NoError(t, err)
	assert.Equal(t, 3, desc.FactionCount())

	a, err := e.Reset(rng.New(9))
	require.NoError(t, err)
	b, err := e.Reset(rng.New(9))
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Equal(t, a, b)
}
