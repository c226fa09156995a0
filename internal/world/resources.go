package world

import (
	"fmt"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/protocol"
)

// DefaultDeltaT is the fixed simulation step.
const DefaultDeltaT = 1.0 / 60.0

type Bounds struct {
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

func (b Bounds) Contains(x, y float64) bool {
	return x >= 0 && x <= b.W && y >= 0 && y <= b.H
}

// Clamp pulls a point into the bounds.
func (b Bounds) Clamp(x, y float64) (float64, float64) {
	return min(max(x, 0), b.W), min(max(y, 0), b.H)
}

type Player struct {
	Faction Faction `yaml:"faction"`
	Color   Color   `yaml:"color"`
}

type UnitType struct {
	Tag               string   `yaml:"tag"`
	MaxHp             float64  `yaml:"max_hp"`
	Movable           bool     `yaml:"movable"`
	Shape             Shape    `yaml:"shape"`
	KillReward        float64  `yaml:"kill_reward"`
	DeathPenalty      float64  `yaml:"death_penalty"`
	DamageDealReward  *float64 `yaml:"damage_deal_reward,omitempty"`
	DamageRecvPenalty *float64 `yaml:"damage_recv_penalty,omitempty"`
	Speed             float64  `yaml:"speed"`
	AttackRange       float64  `yaml:"attack_range"`
}

// UnitTypeTable keeps unit types in declaration order; the position of a
// type is its index in the observation tensor.
type UnitTypeTable struct {
	types []UnitType
	index map[string]int
}

func NewUnitTypeTable() *UnitTypeTable {
	return &UnitTypeTable{index: make(map[string]int)}
}

func (t *UnitTypeTable) Add(ut UnitType) error {
	if _, dup := t.index[ut.Tag]; dup {
		return fmt.Errorf("duplicate unit type %q", ut.Tag)
	}
	t.index[ut.Tag] = len(t.types)
	t.types = append(t.types, ut)
	return nil
}

func (t *UnitTypeTable) Get(tag string) (UnitType, bool) {
	i, ok := t.index[tag]
	if !ok {
		return UnitType{}, false
	}
	return t.types[i], true
}

// Index returns the declaration index of tag, or -1.
func (t *UnitTypeTable) Index(tag string) int {
	if i, ok := t.index[tag]; ok {
		return i
	}
	return -1
}

func (t *UnitTypeTable) All() []UnitType {
	return append([]UnitType(nil), t.types...)
}

func (t *UnitTypeTable) Len() int { return len(t.types) }

type VictoryState int

const (
	Continue VictoryState = iota
	Victory
	Defeat
)

func (v VictoryState) String() string {
	switch v {
	case Victory:
		return "victory"
	case Defeat:
		return "defeat"
	}
	return "continue"
}

// Outcome is the Trigger result of the current tick.
type Outcome struct {
	State   VictoryState
	Reward  float64
	Trigger ecs.EntityID
}

type CommandKind int

const (
	SimpleMove CommandKind = iota
)

// RtsCommand is produced by Input and consumed by Movement.
type RtsCommand struct {
	Kind   CommandKind
	Entity ecs.EntityID
	Target MoveTarget
	Speed  float64
}

// MoveResult records which axes of an entity changed this tick.
type MoveResult struct {
	Entity ecs.EntityID
	NewX   *float64
	NewY   *float64
}

// Observation is the encoded feature tensor plus the reward summary.
type Observation struct {
	Features    []float64
	Dims        [3]int
	Reward      float64
	TypedReward map[string]float64
	Terminal    bool
}

func (o *Observation) ToProto() *protocol.State {
	typed := make(map[string]float64, len(o.TypedReward))
	for k, v := range o.TypedReward {
		typed[k] = v
	}
	return &protocol.State{
		Features:         append([]float64(nil), o.Features...),
		FeatureArrayDims: o.Dims,
		Reward:           o.Reward,
		TypedReward:      typed,
		Terminal:         o.Terminal,
	}
}
