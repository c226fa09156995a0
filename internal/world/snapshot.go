package world

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/core/errs"
	"gopkg.in/yaml.v3"
)

// Snapshot is the persistent form of a World. Entity references are
// replaced by markers; spatial index entries and per-tick buffers are
// rebuilt on load.
type Snapshot struct {
	Tick         uint64              `yaml:"tick"`
	Episode      uint64              `yaml:"episode"`
	Terminal     bool                `yaml:"terminal"`
	NeedsKeyInfo bool                `yaml:"needs_key_info"`
	DeltaT       float64             `yaml:"delta_t"`
	Bounds       Bounds              `yaml:"bounds"`
	Players      []Player            `yaml:"players"`
	UnitTypes    []UnitType          `yaml:"unit_types"`
	LastReward   map[Faction]float64 `yaml:"last_reward"`
	Outcome      OutcomeRecord       `yaml:"outcome"`
	Rng          string              `yaml:"rng"`
	NextMarker   Marker              `yaml:"next_marker"`
	Entities     []EntityRecord      `yaml:"entities"`
}

type OutcomeRecord struct {
	State   VictoryState `yaml:"state"`
	Reward  float64      `yaml:"reward"`
	Trigger *Marker      `yaml:"trigger,omitempty"`
}

type EntityRecord struct {
	Marker    Marker           `yaml:"marker"`
	Tag       string           `yaml:"tag"`
	Position  Position         `yaml:"position"`
	Shape     Shape            `yaml:"shape"`
	Color     Color            `yaml:"color"`
	Faction   Faction          `yaml:"faction"`
	Movable   bool             `yaml:"movable"`
	Speed     float64          `yaml:"speed"`
	Hp        Hp               `yaml:"hp"`
	Moved     bool             `yaml:"moved"`
	MoveOrder *MoveOrderRecord `yaml:"move_order,omitempty"`
}

type MoveOrderRecord struct {
	Ground *GroundRecord `yaml:"ground,omitempty"`
	Unit   *Marker       `yaml:"unit,omitempty"`
	Speed  float64       `yaml:"speed"`
}

type GroundRecord struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Save captures the world. A move order aimed at a dead entity fails with
// TargetNotFound and nothing is written.
func (w *World) Save() (*Snapshot, error) {
	rngState, err := w.Rng.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("save rng: %w", err)
	}
	s := &Snapshot{
		Tick:         w.Tick,
		Episode:      w.Episode,
		Terminal:     w.Terminal,
		NeedsKeyInfo: w.NeedsKeyInfo,
		DeltaT:       w.DeltaT,
		Bounds:       w.Bounds,
		Players:      slices.Clone(w.Players),
		UnitTypes:    w.UnitTypes.All(),
		LastReward:   make(map[Faction]float64, len(w.LastReward)),
		Outcome:      OutcomeRecord{State: w.Outcome.State, Reward: w.Outcome.Reward},
		Rng:          hex.EncodeToString(rngState),
		NextMarker:   w.nextMarker,
	}
	for f, r := range w.LastReward {
		s.LastReward[f] = r
	}
	if w.Outcome.State != Continue {
		m, err := w.markerOf(w.Outcome.Trigger)
		if err != nil {
			return nil, err
		}
		s.Outcome.Trigger = &m
	}

	for _, id := range w.Entities() {
		rec, err := w.record(id)
		if err != nil {
			return nil, err
		}
		s.Entities = append(s.Entities, rec)
	}
	slices.SortFunc(s.Entities, func(a, b EntityRecord) int {
		switch {
		case a.Marker < b.Marker:
			return -1
		case a.Marker > b.Marker:
			return 1
		}
		return 0
	})
	return s, nil
}

func (w *World) markerOf(id ecs.EntityID) (Marker, error) {
	if !w.Alive(id) {
		return 0, errs.TargetNotFoundEntity(uint64(id))
	}
	m, ok := w.Markers.Get(id)
	if !ok {
		return 0, errs.TargetNotFoundEntity(uint64(id))
	}
	return *m, nil
}

func (w *World) record(id ecs.EntityID) (EntityRecord, error) {
	m, err := w.markerOf(id)
	if err != nil {
		return EntityRecord{}, err
	}
	rec := EntityRecord{
		Marker:  m,
		Movable: w.Movable.Has(id),
		Moved:   w.Moved.Has(id),
	}
	if v, ok := w.Tags.Get(id); ok {
		rec.Tag = string(*v)
	}
	if v, ok := w.Positions.Get(id); ok {
		rec.Position = *v
	}
	if v, ok := w.Shapes.Get(id); ok {
		rec.Shape = *v
	}
	if v, ok := w.Colors.Get(id); ok {
		rec.Color = *v
	}
	if v, ok := w.Factions.Get(id); ok {
		rec.Faction = *v
	}
	if v, ok := w.Speeds.Get(id); ok {
		rec.Speed = float64(*v)
	}
	if v, ok := w.Hps.Get(id); ok {
		rec.Hp = *v
	}
	if order, ok := w.MoveOrders.Get(id); ok {
		mo := &MoveOrderRecord{Speed: order.Speed}
		if order.Target.Unit {
			tm, err := w.markerOf(order.Target.Entity)
			if err != nil {
				return EntityRecord{}, err
			}
			mo.Unit = &tm
		} else {
			mo.Ground = &GroundRecord{X: order.Target.X, Y: order.Target.Y}
		}
		rec.MoveOrder = mo
	}
	return rec, nil
}

// Restore replaces the world with the snapshot contents. On any error,
// including an unknown target marker, the world is left untouched.
func (w *World) Restore(s *Snapshot) error {
	nw := New(Options{Bounds: s.Bounds, CellSize: w.Spatial.cellSize, DeltaT: s.DeltaT})
	nw.Tick = s.Tick
	nw.Episode = s.Episode
	nw.Terminal = s.Terminal
	nw.NeedsKeyInfo = s.NeedsKeyInfo
	nw.Players = slices.Clone(s.Players)
	nw.IDs().ReclaimThreshold = w.IDs().ReclaimThreshold
	nw.IDs().Strict = w.IDs().Strict
	for f, r := range s.LastReward {
		nw.LastReward[f] = r
	}
	for _, ut := range s.UnitTypes {
		if err := nw.UnitTypes.Add(ut); err != nil {
			return fmt.Errorf("restore unit types: %w", err)
		}
	}
	state, err := hex.DecodeString(s.Rng)
	if err != nil {
		return fmt.Errorf("restore rng: %w", err)
	}
	if err := nw.Rng.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("restore rng: %w", err)
	}

	byMarker := make(map[Marker]ecs.EntityID, len(s.Entities))
	for _, rec := range s.Entities {
		id, err := nw.restoreEntity(rec)
		if err != nil {
			return err
		}
		byMarker[rec.Marker] = id
	}
	for _, rec := range s.Entities {
		if rec.MoveOrder == nil {
			continue
		}
		order := MoveOrder{Speed: rec.MoveOrder.Speed}
		switch {
		case rec.MoveOrder.Unit != nil:
			target, ok := byMarker[*rec.MoveOrder.Unit]
			if !ok {
				return errs.TargetNotFoundMarker(uint64(*rec.MoveOrder.Unit))
			}
			order.Target = UnitTarget(target)
		case rec.MoveOrder.Ground != nil:
			order.Target = GroundTarget(rec.MoveOrder.Ground.X, rec.MoveOrder.Ground.Y)
		default:
			return fmt.Errorf("move order of marker %d has no target", rec.Marker)
		}
		nw.MoveOrders.Set(byMarker[rec.Marker], &order)
	}
	nw.Outcome = Outcome{State: s.Outcome.State, Reward: s.Outcome.Reward}
	if s.Outcome.Trigger != nil {
		id, ok := byMarker[*s.Outcome.Trigger]
		if !ok {
			return errs.TargetNotFoundMarker(uint64(*s.Outcome.Trigger))
		}
		nw.Outcome.Trigger = id
	}
	nw.nextMarker = s.NextMarker
	if err := nw.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	*w = *nw
	return nil
}

func (w *World) restoreEntity(rec EntityRecord) (ecs.EntityID, error) {
	ut, ok := w.UnitTypes.Get(rec.Tag)
	if !ok {
		return 0, fmt.Errorf("marker %d: unknown unit type %q", rec.Marker, rec.Tag)
	}
	if _, dup := w.findMarker(rec.Marker); dup {
		return 0, fmt.Errorf("duplicate marker %d", rec.Marker)
	}
	if err := rec.Shape.Validate(); err != nil {
		return 0, fmt.Errorf("marker %d: %w", rec.Marker, err)
	}
	p := rec.Position
	if !w.Bounds.Contains(p.X, p.Y) {
		return 0, errs.InvariantViolation("marker %d at (%g, %g) outside world bounds", rec.Marker, p.X, p.Y)
	}
	id, err := w.ents.CreateEntity()
	if err != nil {
		return 0, err
	}
	pos, shape, color, faction := rec.Position, rec.Shape, rec.Color, rec.Faction
	tag, speed, hp, marker := UnitTypeTag(rec.Tag), Speed(rec.Speed), rec.Hp, rec.Marker
	w.Positions.Set(id, &pos)
	w.Shapes.Set(id, &shape)
	w.Colors.Set(id, &color)
	w.Factions.Set(id, &faction)
	w.Tags.Set(id, &tag)
	w.Speeds.Set(id, &speed)
	w.Hps.Set(id, &hp)
	w.Markers.Set(id, &marker)
	if rec.Movable {
		w.Movable.Add(id)
	} else {
		w.Static.Add(id)
	}
	if rec.Moved {
		w.Moved.Add(id)
	}
	ch := w.Spatial.Insert(id, shape, pos)
	sh := w.Spatial.InsertSensor(id, shape.Extent()+ut.AttackRange, pos)
	w.Collisions.Set(id, &ch)
	w.Sensors.Set(id, &sh)
	return id, nil
}

func (w *World) findMarker(m Marker) (ecs.EntityID, bool) {
	var found ecs.EntityID
	ok := false
	w.Markers.Each(func(id ecs.EntityID, v *Marker) {
		if !ok && *v == m {
			found, ok = id, true
		}
	})
	return found, ok
}

// EntityByMarker resolves a marker to a live entity.
func (w *World) EntityByMarker(m Marker) (ecs.EntityID, bool) {
	return w.findMarker(m)
}

// MarshalSnapshot encodes a snapshot as YAML.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
