package system

import (
	"fmt"
	"math"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/core/errs"
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/protocol"
	"github.com/skyrts/backend/internal/world"
	"go.uber.org/zap"
)

// ActionStyle selects how an Action is interpreted.
type ActionStyle string

const (
	// StyleAuto decodes alternate_actions when present, discrete_actions otherwise.
	StyleAuto       ActionStyle = "auto"
	StyleActionList ActionStyle = "action_list"
	StyleDiscrete   ActionStyle = "discrete"
)

func ParseActionStyle(s string) (ActionStyle, error) {
	switch ActionStyle(s) {
	case StyleAuto, StyleActionList, StyleDiscrete:
		return ActionStyle(s), nil
	case "":
		return StyleAuto, nil
	}
	return "", fmt.Errorf("unknown action style %q", s)
}

// InputSystem turns the pending action into RtsCommands and MoveOrders.
// Bad commands are dropped and recorded as non-fatal faults; Position is
// never touched here. Phase 1 (Input).
type InputSystem struct {
	world *world.World
	style ActionStyle
	log   *zap.Logger
}

func NewInputSystem(w *world.World, style ActionStyle, log *zap.Logger) *InputSystem {
	return &InputSystem{world: w, style: style, log: log}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ float64) error {
	w := s.world
	action := w.PendingAction
	w.PendingAction = nil
	if action == nil {
		return nil
	}

	style := s.style
	if style == StyleAuto {
		style = StyleDiscrete
		if len(action.AlternateActions) > 0 {
			style = StyleActionList
		}
	}
	switch style {
	case StyleActionList:
		s.actionList(action.AlternateActions)
	case StyleDiscrete:
		s.discrete(action.DiscreteActions)
	}

	// Later commands for the same unit overwrite earlier ones.
	for _, cmd := range w.Commands {
		order := world.MoveOrder{Target: cmd.Target, Speed: cmd.Speed}
		w.MoveOrders.Set(cmd.Entity, &order)
	}
	return nil
}

func (s *InputSystem) drop(e *errs.Error) {
	s.log.Warn("command dropped",
		zap.Stringer("kind", e.Kind),
		zap.String("reason", e.Description),
		zap.Uint64("tick", s.world.Tick))
	s.world.Fault(e)
}

func (s *InputSystem) actionList(raw []byte) {
	cmds, err := protocol.DecodeActionList(raw)
	if err != nil {
		s.drop(errs.MalformedAction("decode action list: %v", err))
		return
	}
	for _, c := range cmds {
		unit := ecs.EntityID(c.UnitID)
		speed, err := s.mover(unit)
		if err != nil {
			s.drop(err)
			continue
		}
		switch c.Kind {
		case protocol.CommandMoveTo:
			if math.IsNaN(c.X) || math.IsNaN(c.Y) {
				s.drop(errs.MalformedAction("unit %d: move target is not a number", unit))
				continue
			}
			x, y := s.world.Bounds.Clamp(c.X, c.Y)
			s.emit(unit, world.GroundTarget(x, y), speed)
		case protocol.CommandAttackUnit:
			target := ecs.EntityID(c.TargetID)
			if !s.world.Alive(target) || target == unit {
				s.drop(errs.MalformedAction("unit %d: bad attack target %d", unit, target))
				continue
			}
			s.emit(unit, world.UnitTarget(target), speed)
		case protocol.CommandUnknown:
			s.drop(errs.UnsupportedAction("unit %d: command field %d not implemented", unit, c.Field))
		default:
			s.drop(errs.MalformedAction("unit %d: no command", unit))
		}
	}
}

// discrete treats the first integer as a target entity and sends every
// movable agent unit toward its current position.
func (s *InputSystem) discrete(actions []int64) {
	if len(actions) == 0 {
		return
	}
	w := s.world
	target := ecs.EntityID(actions[0])
	if actions[0] < 0 || !w.Alive(target) {
		s.drop(errs.MalformedAction("discrete target %d does not exist", actions[0]))
		return
	}
	tp, ok := w.Positions.Get(target)
	if !ok {
		s.drop(errs.MalformedAction("discrete target %d has no position", target))
		return
	}
	x, y := w.Bounds.Clamp(tp.X, tp.Y)
	for _, id := range w.Movable.IDs() {
		if f, ok := w.Factions.Get(id); !ok || *f != world.FactionAgent {
			continue
		}
		speed, err := s.mover(id)
		if err != nil {
			s.drop(err)
			continue
		}
		s.emit(id, world.GroundTarget(x, y), speed)
	}
}

// mover checks that id can take a move order and returns its speed.
func (s *InputSystem) mover(id ecs.EntityID) (float64, *errs.Error) {
	w := s.world
	if !w.Alive(id) {
		return 0, errs.MalformedAction("unknown unit %d", id)
	}
	if !w.Movable.Has(id) {
		return 0, errs.MalformedAction("unit %d cannot move", id)
	}
	sp, ok := w.Speeds.Get(id)
	if !ok || !(*sp > 0) {
		return 0, errs.MalformedAction("unit %d has no speed", id)
	}
	return float64(*sp), nil
}

func (s *InputSystem) emit(id ecs.EntityID, target world.MoveTarget, speed float64) {
	s.world.Commands = append(s.world.Commands, world.RtsCommand{
		Kind:   world.SimpleMove,
		Entity: id,
		Target: target,
		Speed:  speed,
	})
}
