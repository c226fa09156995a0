package system

import (
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/world"
	"go.uber.org/zap"
)

// TriggerRules are the Towers win/lose conditions.
type TriggerRules struct {
	VictoryRadius float64
	DefeatRadius  float64
	VictoryReward float64
	DefeatReward  float64
}

func DefaultTriggerRules() TriggerRules {
	return TriggerRules{
		VictoryRadius: 1e-4,
		DefeatRadius:  50,
		VictoryReward: 100,
		DefeatReward:  -100,
	}
}

// TriggerSystem checks the agent against the entities the spatial index
// finds within the larger rule radius, in ascending id order; the first rule
// that fires ends the episode. Phase 3 (PostUpdate).
type TriggerSystem struct {
	world *world.World
	rules TriggerRules
	log   *zap.Logger
}

func NewTriggerSystem(w *world.World, rules TriggerRules, log *zap.Logger) *TriggerSystem {
	return &TriggerSystem{world: w, rules: rules, log: log}
}

func (s *TriggerSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *TriggerSystem) Update(_ float64) error {
	w := s.world
	w.Outcome = s.Evaluate()
	if w.Outcome.State == world.Continue {
		return nil
	}

	f, _ := w.Factions.Get(w.Outcome.Trigger)
	w.LastReward[*f] += w.Outcome.Reward
	w.Terminal = true
	s.log.Debug("episode finished",
		zap.Stringer("outcome", w.Outcome.State),
		zap.Uint64("trigger", uint64(w.Outcome.Trigger)),
		zap.Float64("reward", w.Outcome.Reward),
		zap.Uint64("episode", w.Episode),
		zap.Uint64("tick", w.Tick))
	return nil
}

// Evaluate applies the rules without changing the world.
func (s *TriggerSystem) Evaluate() world.Outcome {
	w := s.world
	agent, ok := w.Agent()
	if !ok {
		return world.Outcome{State: world.Continue}
	}
	ap, ok := w.Positions.Get(agent)
	if !ok {
		return world.Outcome{State: world.Continue}
	}
	r := max(s.rules.VictoryRadius, s.rules.DefeatRadius)
	for _, id := range w.Spatial.RangeQuery(world.Rect(2*r, 2*r), *ap) {
		if id == agent {
			continue
		}
		p, ok := w.Positions.Get(id)
		if !ok {
			continue
		}
		f, ok := w.Factions.Get(id)
		if !ok {
			continue
		}
		d := ap.DistanceTo(*p)
		switch {
		case d < s.rules.VictoryRadius && *f == world.FactionFriendly:
			return world.Outcome{State: world.Victory, Reward: s.rules.VictoryReward, Trigger: id}
		case d < s.rules.DefeatRadius && *f == world.FactionHostile:
			return world.Outcome{State: world.Defeat, Reward: s.rules.DefeatReward, Trigger: id}
		}
	}
	return world.Outcome{State: world.Continue}
}
