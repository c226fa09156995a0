package scenario

// Towers places the agent near the middle of a 1000x1000 field with a
// friendly tower on one side and a hostile tower on the other. Both towers
// start beyond the default defeat radius.
type Towers struct{}

func (Towers) Init() (Description, error) {
	agentHp, towerHp := 100.0, 500.0
	canMove := false
	return Description{
		Factions: 3,
		UnitTypes: []UnitTypeSpec{
			{Tag: "agent", MaxHp: &agentHp},
			{
				Tag:     "tower",
				MaxHp:   &towerHp,
				CanMove: &canMove,
				Shape:   &ShapeSpec{Body: "rect", Width: 10, Height: 10},
			},
		},
	}, nil
}

func (Towers) Reset(r Rand) ([]UnitSpec, error) {
	ax, ay := r.GenRange(400, 600), r.GenRange(400, 600)
	side := 1.0
	if r.GenInt(0, 2) == 0 {
		side = -1
	}
	good := Pos{X: ax + side*r.GenRange(150, 350), Y: r.GenRange(100, 900)}
	bad := Pos{X: ax - side*r.GenRange(150, 350), Y: r.GenRange(100, 900)}
	return []UnitSpec{
		{UnitType: "agent", Pos: Pos{X: ax, Y: ay}, Faction: 0},
		{UnitType: "tower", Pos: good, Faction: 1},
		{UnitType: "tower", Pos: bad, Faction: 2},
	}, nil
}

// Fixed is a scenario with a constant layout, handy for replays and tests.
type Fixed struct {
	Desc  Description
	Units []UnitSpec
}

func (f *Fixed) Init() (Description, error) { return f.Desc, nil }

func (f *Fixed) Reset(Rand) ([]UnitSpec, error) {
	return append([]UnitSpec(nil), f.Units...), nil
}
