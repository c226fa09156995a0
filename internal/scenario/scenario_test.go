package scenario

import (
	"math"
	"testing"

	"github.com/skyrts/backend/internal/rng"
	"github.com/skyrts/backend/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestUnitTypeDefaults(t *testing.T) {
	ut, err := UnitTypeSpec{Tag: "scout"}.UnitType()
	require.NoError(t, err)
	assert.Equal(t, world.UnitType{
		Tag:         "scout",
		MaxHp:       100,
		Movable:     true,
		Shape:       world.Triangle(10),
		Speed:       20,
		AttackRange: 10,
	}, ut)
}

func TestUnitTypeRewardNegation(t *testing.T) {
	ut, err := UnitTypeSpec{Tag: "a", KillReward: f64(5)}.UnitType()
	require.NoError(t, err)
	assert.Equal(t, 5.0, ut.KillReward)
	assert.Equal(t, -5.0, ut.DeathPenalty)

	ut, err = UnitTypeSpec{Tag: "b", DeathPenalty: f64(-3)}.UnitType()
	require.NoError(t, err)
	assert.Equal(t, 3.0, ut.KillReward)
	assert.Equal(t, -3.0, ut.DeathPenalty)

	ut, err = UnitTypeSpec{Tag: "c", KillReward: f64(1), DeathPenalty: f64(-7)}.UnitType()
	require.NoError(t, err)
	assert.Equal(t, 1.0, ut.KillReward)
	assert.Equal(t, -7.0, ut.DeathPenalty)
}

func TestUnitTypeRejects(t *testing.T) {
	no := false
	cases := map[string]UnitTypeSpec{
		"no tag":       {},
		"bad body":     {Tag: "x", Shape: &ShapeSpec{Body: "circle"}},
		"zero rect":    {Tag: "x", Shape: &ShapeSpec{Body: "rect", Width: 0, Height: 3}},
		"zero hp":      {Tag: "x", MaxHp: f64(0)},
		"zero speed":   {Tag: "x", Speed: f64(0)},
		"negative rng": {Tag: "x", AttackRange: f64(-1), CanMove: &no},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := spec.UnitType()
			assert.Error(t, err)
		})
	}

	_, err := UnitTypeSpec{Tag: "still", Speed: f64(0), CanMove: &no}.UnitType()
	assert.NoError(t, err, "static units need no speed")
}

func TestUnitTypesTableRejectsDuplicates(t *testing.T) {
	d := Description{UnitTypes: []UnitTypeSpec{{Tag: "a"}, {Tag: "b"}, {Tag: "a"}}}
	_, err := d.UnitTypesTable()
	assert.Error(t, err)

	d.UnitTypes = d.UnitTypes[:2]
	table, err := d.UnitTypesTable()
	require.NoError(t, err)
	assert.Equal(t, 1, table.Index("b"))
	assert.Equal(t, DefaultFactions, d.FactionCount())
}

func TestPlayersPalette(t *testing.T) {
	players := Players(10)
	require.Len(t, players, 10)
	assert.Equal(t, world.Color{B: 255, A: 255}, players[0].Color)
	assert.Equal(t, world.Color{G: 255, A: 255}, players[1].Color)
	assert.Equal(t, world.Color{R: 255, A: 255}, players[2].Color)
	assert.Equal(t, players[0].Color, players[8].Color)
	assert.Equal(t, world.Faction(9), players[9].Faction)
}

func TestTowersLayout(t *testing.T) {
	desc, err := Towers{}.Init()
	require.NoError(t, err)
	_, err = desc.UnitTypesTable()
	require.NoError(t, err)

	bounds := world.Bounds{W: 1000, H: 1000}
	for seed := uint64(0); seed < 50; seed++ {
		units, err := Towers{}.Reset(rng.New(seed))
		require.NoError(t, err)
		require.Len(t, units, 3)
		agent := units[0].Pos
		for _, u := range units {
			assert.True(t, bounds.Contains(u.Pos.X, u.Pos.Y), "seed %d: %+v", seed, u)
		}
		for _, tower := range units[1:] {
			d := math.Hypot(tower.Pos.X-agent.X, tower.Pos.Y-agent.Y)
			assert.Greater(t, d, 50.0)
		}
	}
}

func TestTowersSeedDetermines(t *testing.T) {
	a, err := Towers{}.Reset(rng.New(3))
	require.NoError(t, err)
	b, err := Towers{}.Reset(rng.New(3))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
