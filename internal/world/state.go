package world

import (
	"fmt"
	"math"
	"slices"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/core/errs"
	"github.com/skyrts/backend/internal/protocol"
	"github.com/skyrts/backend/internal/rng"
)

// World holds the entity store, every component table and the process
// resources. Accessed only from the simulation goroutine, no locks.
type World struct {
	ents *ecs.World

	Positions  *ecs.PtrComponentStore[Position]
	Shapes     *ecs.PtrComponentStore[Shape]
	Colors     *ecs.PtrComponentStore[Color]
	Factions   *ecs.PtrComponentStore[Faction]
	Tags       *ecs.PtrComponentStore[UnitTypeTag]
	Speeds     *ecs.PtrComponentStore[Speed]
	Hps        *ecs.PtrComponentStore[Hp]
	MoveOrders *ecs.PtrComponentStore[MoveOrder]
	Collisions *ecs.PtrComponentStore[Handle]
	Sensors    *ecs.PtrComponentStore[Handle]
	Markers    *ecs.PtrComponentStore[Marker]
	Movable    *ecs.TagStore
	Static     *ecs.TagStore
	Moved      *ecs.TagStore

	Spatial *SpatialIndex
	Rng     *rng.Source

	Tick          uint64
	Episode       uint64
	DeltaT        float64
	Terminal      bool
	LastReward    map[Faction]float64
	Bounds        Bounds
	Players       []Player
	UnitTypes     *UnitTypeTable
	PendingAction *protocol.Action
	NeedsKeyInfo  bool
	Outcome       Outcome

	// Per-tick buffers, never persisted.
	Commands    []RtsCommand
	MoveResults []MoveResult
	Frame       *protocol.VizFrame
	Observation *Observation
	Faults      []*errs.Error

	nextMarker Marker
}

type Options struct {
	Bounds   Bounds
	CellSize float64
	DeltaT   float64
	Seed     uint64
}

func New(opts Options) *World {
	if opts.Bounds.W <= 0 || opts.Bounds.H <= 0 {
		opts.Bounds = Bounds{W: 1000, H: 1000}
	}
	if opts.DeltaT <= 0 {
		opts.DeltaT = DefaultDeltaT
	}
	w := &World{
		ents:       ecs.NewWorld(),
		Positions:  ecs.NewPtrComponentStore[Position](),
		Shapes:     ecs.NewPtrComponentStore[Shape](),
		Colors:     ecs.NewPtrComponentStore[Color](),
		Factions:   ecs.NewPtrComponentStore[Faction](),
		Tags:       ecs.NewPtrComponentStore[UnitTypeTag](),
		Speeds:     ecs.NewPtrComponentStore[Speed](),
		Hps:        ecs.NewPtrComponentStore[Hp](),
		MoveOrders: ecs.NewPtrComponentStore[MoveOrder](),
		Collisions: ecs.NewPtrComponentStore[Handle](),
		Sensors:    ecs.NewPtrComponentStore[Handle](),
		Markers:    ecs.NewPtrComponentStore[Marker](),
		Movable:    ecs.NewTagStore(),
		Static:     ecs.NewTagStore(),
		Moved:      ecs.NewTagStore(),
		Spatial:    NewSpatialIndex(opts.CellSize),
		Rng:        rng.New(opts.Seed),
		DeltaT:     opts.DeltaT,
		LastReward: make(map[Faction]float64),
		Bounds:     opts.Bounds,
		UnitTypes:  NewUnitTypeTable(),
	}
	reg := w.ents.Registry()
	reg.Register(w.Positions)
	reg.Register(w.Shapes)
	reg.Register(w.Colors)
	reg.Register(w.Factions)
	reg.Register(w.Tags)
	reg.Register(w.Speeds)
	reg.Register(w.Hps)
	reg.Register(w.MoveOrders)
	reg.Register(w.Collisions)
	reg.Register(w.Sensors)
	reg.Register(w.Markers)
	reg.Register(w.Movable)
	reg.Register(w.Static)
	reg.Register(w.Moved)
	return w
}

// IDs exposes the entity store, for allocation policy knobs.
func (w *World) IDs() *ecs.IDManager { return w.ents.IDs() }

func (w *World) Alive(id ecs.EntityID) bool { return w.ents.Alive(id) }

// Entities returns all live entities, ascending.
func (w *World) Entities() []ecs.EntityID { return w.ents.Live() }

// DeleteAll destroys every entity and empties the spatial index and the
// per-tick buffers.
func (w *World) DeleteAll() {
	w.ents.DeleteAll()
	w.Spatial.Clear()
	w.nextMarker = 0
	w.ClearTransient()
}

// ClearTransient drops the per-tick buffers.
func (w *World) ClearTransient() {
	w.Commands = w.Commands[:0]
	w.MoveResults = w.MoveResults[:0]
	w.Frame = nil
	w.Faults = w.Faults[:0]
}

// Fault records a non-fatal error for the current tick.
func (w *World) Fault(e *errs.Error) {
	w.Faults = append(w.Faults, e)
}

// PlayerColor returns the palette color of a faction.
func (w *World) PlayerColor(f Faction) (Color, bool) {
	for _, p := range w.Players {
		if p.Faction == f {
			return p.Color, true
		}
	}
	return Color{}, false
}

// Spawn creates a unit of type ut for faction f at pos with every
// component the simulation needs, including index handles.
func (w *World) Spawn(ut UnitType, pos Position, f Faction) (ecs.EntityID, error) {
	color, ok := w.PlayerColor(f)
	if !ok {
		return 0, fmt.Errorf("unknown faction %d", f)
	}
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) {
		return 0, fmt.Errorf("non-finite position (%g, %g)", pos.X, pos.Y)
	}
	if !w.Bounds.Contains(pos.X, pos.Y) {
		return 0, fmt.Errorf("position (%g, %g) outside world %gx%g", pos.X, pos.Y, w.Bounds.W, w.Bounds.H)
	}
	if err := ut.Shape.Validate(); err != nil {
		return 0, fmt.Errorf("unit type %q: %w", ut.Tag, err)
	}
	if ut.Movable && !(ut.Speed > 0) {
		return 0, fmt.Errorf("movable unit type %q needs positive speed", ut.Tag)
	}

	id, err := w.ents.CreateEntity()
	if err != nil {
		return 0, err
	}
	p, shape, faction, tag := pos, ut.Shape, f, UnitTypeTag(ut.Tag)
	speed := Speed(ut.Speed)
	hp := Hp{Curr: ut.MaxHp, Max: ut.MaxHp}
	marker := w.nextMarker
	w.nextMarker++

	w.Positions.Set(id, &p)
	w.Shapes.Set(id, &shape)
	w.Colors.Set(id, &color)
	w.Factions.Set(id, &faction)
	w.Tags.Set(id, &tag)
	w.Speeds.Set(id, &speed)
	w.Hps.Set(id, &hp)
	w.Markers.Set(id, &marker)
	if ut.Movable {
		w.Movable.Add(id)
	} else {
		w.Static.Add(id)
	}

	ch := w.Spatial.Insert(id, shape, p)
	sh := w.Spatial.InsertSensor(id, shape.Extent()+ut.AttackRange, p)
	w.Collisions.Set(id, &ch)
	w.Sensors.Set(id, &sh)
	return id, nil
}

// SetPosition writes an entity's position and keeps its index entries in step.
func (w *World) SetPosition(id ecs.EntityID, pos Position) {
	p, ok := w.Positions.Get(id)
	if !ok {
		return
	}
	*p = pos
	if h, ok := w.Collisions.Get(id); ok {
		w.Spatial.Update(*h, pos)
	}
	if h, ok := w.Sensors.Get(id); ok {
		w.Spatial.Update(*h, pos)
	}
}

// InAttackRange lists the entities inside id's attack sensor.
func (w *World) InAttackRange(id ecs.EntityID) []ecs.EntityID {
	h, ok := w.Sensors.Get(id)
	if !ok {
		return nil
	}
	return w.Spatial.SensorContacts(*h)
}

// Agent returns the lowest-id entity of the agent faction.
func (w *World) Agent() (ecs.EntityID, bool) {
	for _, id := range w.Factions.IDs() {
		if f, _ := w.Factions.Get(id); *f == FactionAgent {
			return id, true
		}
	}
	return 0, false
}

// TotalReward sums LastReward in ascending faction order so the float sum
// does not depend on map iteration.
func (w *World) TotalReward() float64 {
	factions := make([]Faction, 0, len(w.LastReward))
	for f := range w.LastReward {
		factions = append(factions, f)
	}
	slices.Sort(factions)
	var total float64
	for _, f := range factions {
		total += w.LastReward[f]
	}
	return total
}
