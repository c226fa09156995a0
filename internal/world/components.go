package world

import (
	"fmt"
	"math"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/protocol"
)

type Position struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

type ShapeKind int

const (
	ShapeTriangle ShapeKind = iota
	ShapeRect
)

func (k ShapeKind) String() string {
	if k == ShapeRect {
		return "rect"
	}
	return "triangle"
}

// Shape is either Rect{Width, Height} or Triangle{BaseLen}.
type Shape struct {
	Kind    ShapeKind `yaml:"kind"`
	Width   float64   `yaml:"width,omitempty"`
	Height  float64   `yaml:"height,omitempty"`
	BaseLen float64   `yaml:"base_len,omitempty"`
}

func Rect(w, h float64) Shape         { return Shape{Kind: ShapeRect, Width: w, Height: h} }
func Triangle(baseLen float64) Shape { return Shape{Kind: ShapeTriangle, BaseLen: baseLen} }

func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeRect:
		if !(s.Width > 0) || !(s.Height > 0) {
			return fmt.Errorf("rect dimensions must be positive, got %gx%g", s.Width, s.Height)
		}
	case ShapeTriangle:
		if !(s.BaseLen > 0) {
			return fmt.Errorf("triangle base must be positive, got %g", s.BaseLen)
		}
	default:
		return fmt.Errorf("unknown shape kind %d", s.Kind)
	}
	return nil
}

// HalfExtents returns the half width and height of the shape's bounding box.
func (s Shape) HalfExtents() (hw, hh float64) {
	if s.Kind == ShapeRect {
		return s.Width / 2, s.Height / 2
	}
	return s.BaseLen / 2, s.BaseLen / 2
}

// Extent is the bounding radius used for sensors.
func (s Shape) Extent() float64 {
	hw, hh := s.HalfExtents()
	return math.Hypot(hw, hh)
}

func (s Shape) ToProto(id uint64, c Color) protocol.Shape {
	out := protocol.Shape{
		ID:          id,
		RelativePos: protocol.FullPos(0, 0),
		Color:       c.ToProto(),
	}
	if s.Kind == ShapeRect {
		out.Rect = &protocol.Rect{Width: s.Width, Height: s.Height}
	} else {
		out.Triangle = &protocol.Triangle{BaseLen: s.BaseLen}
	}
	return out
}

type Color struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
	A uint8 `yaml:"a"`
}

func (c Color) ToProto() *protocol.Color {
	return &protocol.Color{R: uint32(c.R), G: uint32(c.G), B: uint32(c.B), A: uint32(c.A)}
}

// Faction groups entities; 0 is the learning agent.
type Faction int

const (
	FactionAgent    Faction = 0
	FactionFriendly Faction = 1
	FactionHostile  Faction = 2
)

type UnitTypeTag string

type Speed float64

type Hp struct {
	Curr float64 `yaml:"curr"`
	Max  float64 `yaml:"max"`
}

// MoveTarget is Ground(X, Y) or Unit(ID).
type MoveTarget struct {
	Unit   bool
	X, Y   float64
	Entity ecs.EntityID
}

func GroundTarget(x, y float64) MoveTarget { return MoveTarget{X: x, Y: y} }

func UnitTarget(id ecs.EntityID) MoveTarget { return MoveTarget{Unit: true, Entity: id} }

func (t MoveTarget) String() string {
	if t.Unit {
		return fmt.Sprintf("unit(%d)", t.Entity)
	}
	return fmt.Sprintf("ground(%g, %g)", t.X, t.Y)
}

type MoveOrder struct {
	Target MoveTarget
	Speed  float64
}

// Marker is the stable, serializable stand-in for an entity id.
type Marker uint64

// Handle refers to an entry in the spatial index.
type Handle uint64
