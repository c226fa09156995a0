// Package scenario defines the callback pair a scenario provider implements
// and the records it hands to the initializer.
package scenario

import (
	"fmt"

	"github.com/skyrts/backend/internal/world"
)

// Unit type defaults applied to missing fields.
const (
	DefaultMaxHp       = 100.0
	DefaultSpeed       = 20.0
	DefaultBaseLen     = 10.0
	DefaultAttackRange = 10.0
	DefaultFactions    = 2
)

// Rand is the sampling surface scenarios see. Backed by the world RNG so
// the seed fully determines scenario content.
type Rand interface {
	GenRange(lo, hi float64) float64
	GenInt(lo, hi int) int
	Float64() float64
}

// Scenario is implemented by every scenario provider: compiled Go, Lua
// scripts and YAML data files.
type Scenario interface {
	// Init describes the factions and unit types. Called once per load.
	Init() (Description, error)
	// Reset returns the units of a fresh episode.
	Reset(r Rand) ([]UnitSpec, error)
}

type Description struct {
	Factions  int            `yaml:"factions"`
	UnitTypes []UnitTypeSpec `yaml:"unit_types"`
}

type ShapeSpec struct {
	Body    string  `yaml:"body"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	BaseLen float64 `yaml:"base_len"`
}

// UnitTypeSpec is a unit type as declared by a scenario. Nil fields take
// the defaults.
type UnitTypeSpec struct {
	Tag               string     `yaml:"tag"`
	MaxHp             *float64   `yaml:"max_hp"`
	CanMove           *bool      `yaml:"can_move"`
	Shape             *ShapeSpec `yaml:"shape"`
	Speed             *float64   `yaml:"speed"`
	KillReward        *float64   `yaml:"kill_reward"`
	DeathPenalty      *float64   `yaml:"death_penalty"`
	DamageDealReward  *float64   `yaml:"damage_deal_reward"`
	DamageRecvPenalty *float64   `yaml:"damage_recv_penalty"`
	AttackRange       *float64   `yaml:"attack_range"`
}

type Pos struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type UnitSpec struct {
	UnitType string `yaml:"unit_type"`
	Pos      Pos    `yaml:"pos"`
	Faction  int    `yaml:"faction"`
}

// UnitType resolves the spec against the defaults. A single given
// kill_reward or death_penalty implies the other as its negation.
func (s UnitTypeSpec) UnitType() (world.UnitType, error) {
	if s.Tag == "" {
		return world.UnitType{}, fmt.Errorf("unit type without tag")
	}
	ut := world.UnitType{
		Tag:               s.Tag,
		MaxHp:             orDefault(s.MaxHp, DefaultMaxHp),
		Movable:           true,
		Shape:             world.Triangle(DefaultBaseLen),
		Speed:             orDefault(s.Speed, DefaultSpeed),
		AttackRange:       orDefault(s.AttackRange, DefaultAttackRange),
		DamageDealReward:  s.DamageDealReward,
		DamageRecvPenalty: s.DamageRecvPenalty,
	}
	if s.CanMove != nil {
		ut.Movable = *s.CanMove
	}
	if s.Shape != nil {
		shape, err := s.Shape.toShape()
		if err != nil {
			return world.UnitType{}, fmt.Errorf("unit type %q: %w", s.Tag, err)
		}
		ut.Shape = shape
	}
	switch {
	case s.KillReward != nil && s.DeathPenalty != nil:
		ut.KillReward, ut.DeathPenalty = *s.KillReward, *s.DeathPenalty
	case s.KillReward != nil:
		ut.KillReward, ut.DeathPenalty = *s.KillReward, -*s.KillReward
	case s.DeathPenalty != nil:
		ut.KillReward, ut.DeathPenalty = -*s.DeathPenalty, *s.DeathPenalty
	}

	if !(ut.MaxHp > 0) {
		return world.UnitType{}, fmt.Errorf("unit type %q: max_hp must be positive", s.Tag)
	}
	if ut.Movable && !(ut.Speed > 0) {
		return world.UnitType{}, fmt.Errorf("unit type %q: speed must be positive", s.Tag)
	}
	if ut.AttackRange < 0 {
		return world.UnitType{}, fmt.Errorf("unit type %q: negative attack_range", s.Tag)
	}
	return ut, nil
}

func (s ShapeSpec) toShape() (world.Shape, error) {
	var shape world.Shape
	switch s.Body {
	case "rect":
		shape = world.Rect(s.Width, s.Height)
	case "triangle", "":
		base := s.BaseLen
		if base == 0 {
			base = DefaultBaseLen
		}
		shape = world.Triangle(base)
	default:
		return world.Shape{}, fmt.Errorf("unknown shape body %q", s.Body)
	}
	if err := shape.Validate(); err != nil {
		return world.Shape{}, err
	}
	return shape, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// UnitTypesTable resolves every spec in declaration order, rejecting duplicates.
func (d Description) UnitTypesTable() (*world.UnitTypeTable, error) {
	table := world.NewUnitTypeTable()
	for _, spec := range d.UnitTypes {
		ut, err := spec.UnitType()
		if err != nil {
			return nil, err
		}
		if err := table.Add(ut); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// FactionCount returns the declared faction count or the default.
func (d Description) FactionCount() int {
	if d.Factions <= 0 {
		return DefaultFactions
	}
	return d.Factions
}
