package world

import (
	"math"

	"github.com/skyrts/backend/internal/core/errs"
)

// Validate checks the invariants that must hold between ticks and returns
// the first violation found.
func (w *World) Validate() error {
	for _, id := range w.MoveOrders.IDs() {
		if !w.Movable.Has(id) {
			return errs.InvariantViolation("entity %d has a move order but is not movable", id)
		}
		if s, ok := w.Speeds.Get(id); !ok || !(*s > 0) {
			return errs.InvariantViolation("entity %d has a move order without positive speed", id)
		}
		order, _ := w.MoveOrders.Get(id)
		if order.Target.Unit && !w.Alive(order.Target.Entity) {
			return errs.InvariantViolation("entity %d targets missing entity %d", id, order.Target.Entity)
		}
	}
	for _, id := range w.Entities() {
		if w.Movable.Has(id) == w.Static.Has(id) {
			return errs.InvariantViolation("entity %d must be exactly one of movable or static", id)
		}
		hp, ok := w.Hps.Get(id)
		if !ok || hp.Curr < 0 || hp.Curr > hp.Max {
			return errs.InvariantViolation("entity %d hp out of range", id)
		}
		p, ok := w.Positions.Get(id)
		if !ok {
			return errs.InvariantViolation("entity %d has no position", id)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errs.InvariantViolation("entity %d position not finite", id)
		}
		if !w.Bounds.Contains(p.X, p.Y) {
			return errs.InvariantViolation("entity %d at (%g, %g) outside world bounds", id, p.X, p.Y)
		}
		f, ok := w.Factions.Get(id)
		if !ok {
			return errs.InvariantViolation("entity %d has no faction", id)
		}
		if _, known := w.PlayerColor(*f); !known {
			return errs.InvariantViolation("entity %d references unknown faction %d", id, *f)
		}
		if h, ok := w.Collisions.Get(id); ok {
			if ip, ok := w.Spatial.Position(*h); !ok || ip.X != p.X || ip.Y != p.Y {
				return errs.InvariantViolation("entity %d collision handle out of date", id)
			}
		}
	}
	return nil
}
