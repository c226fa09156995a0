package system

import (
	"github.com/skyrts/backend/internal/core/ecs"
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/protocol"
	"github.com/skyrts/backend/internal/world"
)

// RenderSystem builds the Viz frame. After a reset (NeedsKeyInfo) it emits
// every entity with its shape; afterwards only the axes Movement changed.
// Phase 4 (Output).
type RenderSystem struct {
	world    *world.World
	rendered map[ecs.EntityID]world.Position
}

func NewRenderSystem(w *world.World) *RenderSystem {
	return &RenderSystem{world: w, rendered: make(map[ecs.EntityID]world.Position)}
}

func (s *RenderSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *RenderSystem) Update(_ float64) error {
	w := s.world
	frame := &protocol.VizFrame{Entities: []protocol.VizEntity{}}
	if w.NeedsKeyInfo {
		clear(s.rendered)
		for _, id := range w.Entities() {
			frame.Entities = append(frame.Entities, s.full(id))
		}
		w.NeedsKeyInfo = false
		w.Frame = frame
		return nil
	}

	for _, res := range w.MoveResults {
		ent := protocol.VizEntity{
			ID:     uint64(res.Entity),
			Pos:    &protocol.Pos{X: res.NewX, Y: res.NewY},
			Shapes: []protocol.Shape{},
		}
		p := s.rendered[res.Entity]
		if res.NewX != nil {
			p.X = *res.NewX
		}
		if res.NewY != nil {
			p.Y = *res.NewY
		}
		s.rendered[res.Entity] = p
		frame.Entities = append(frame.Entities, ent)
	}
	w.Frame = frame
	return nil
}

func (s *RenderSystem) full(id ecs.EntityID) protocol.VizEntity {
	w := s.world
	ent := protocol.VizEntity{ID: uint64(id), Shapes: []protocol.Shape{}}
	if p, ok := w.Positions.Get(id); ok {
		ent.Pos = protocol.FullPos(p.X, p.Y)
		s.rendered[id] = world.Position{X: p.X, Y: p.Y}
	}
	if shape, ok := w.Shapes.Get(id); ok {
		var color world.Color
		if c, ok := w.Colors.Get(id); ok {
			color = *c
		}
		ent.Shapes = append(ent.Shapes, shape.ToProto(0, color))
	}
	return ent
}

// Rendered returns the last position sent to the visualizer for id.
func (s *RenderSystem) Rendered(id ecs.EntityID) (world.Position, bool) {
	p, ok := s.rendered[id]
	return p, ok
}
