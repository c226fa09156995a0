package system

import (
	"cmp"
	"math"

	"github.com/skyrts/backend/internal/core/errs"
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/world"
)

// ArrivalEpsilon is the per-axis distance under which a unit has reached
// its target.
const ArrivalEpsilon = 1e-4

// MovementSystem advances every unit with a MoveOrder one step toward its
// target, in ascending id order. Phase 2 (Update).
type MovementSystem struct {
	world *world.World
}

func NewMovementSystem(w *world.World) *MovementSystem {
	return &MovementSystem{world: w}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(dt float64) error {
	w := s.world
	for _, id := range w.MoveOrders.IDs() {
		order, _ := w.MoveOrders.Get(id)
		if !w.Movable.Has(id) {
			return errs.InvariantViolation("entity %d has a move order but is not movable", id)
		}
		if !(order.Speed > 0) {
			return errs.InvariantViolation("entity %d has a move order without positive speed", id)
		}
		p, ok := w.Positions.Get(id)
		if !ok {
			return errs.InvariantViolation("entity %d has a move order but no position", id)
		}

		tx, ty := order.Target.X, order.Target.Y
		if order.Target.Unit {
			tp, ok := w.Positions.Get(order.Target.Entity)
			if !ok || !w.Alive(order.Target.Entity) {
				return errs.InvariantViolation("entity %d targets missing entity %d", id, order.Target.Entity)
			}
			tx, ty = tp.X, tp.Y
		}

		dx, dy := tx-p.X, ty-p.Y
		if arrived(dx, dy) {
			if !order.Target.Unit {
				w.MoveOrders.Remove(id)
			}
			continue
		}

		step := order.Speed * dt
		dist := math.Hypot(dx, dy)
		nx := p.X + dx/dist*step
		ny := p.Y + dy/dist*step
		// Snap any axis that crossed the target.
		if cmp.Compare(nx, tx) != cmp.Compare(p.X, tx) {
			nx = tx
		}
		if cmp.Compare(ny, ty) != cmp.Compare(p.Y, ty) {
			ny = ty
		}
		nx, ny = w.Bounds.Clamp(nx, ny)

		res := world.MoveResult{Entity: id}
		if nx != p.X {
			x := nx
			res.NewX = &x
		}
		if ny != p.Y {
			y := ny
			res.NewY = &y
		}
		w.SetPosition(id, world.Position{X: nx, Y: ny, Heading: math.Atan2(dy, dx)})
		w.Moved.Add(id)
		w.MoveResults = append(w.MoveResults, res)

		if !order.Target.Unit && arrived(tx-nx, ty-ny) {
			w.MoveOrders.Remove(id)
		}
	}
	return nil
}

func arrived(dx, dy float64) bool {
	return math.Abs(dx) < ArrivalEpsilon && math.Abs(dy) < ArrivalEpsilon
}
