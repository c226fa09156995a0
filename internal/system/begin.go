package system

import (
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/world"
)

// BeginSystem resets the per-tick state: MovedFlag, LastReward, the last
// Outcome and the transient buffers. Phase 0 (Begin).
type BeginSystem struct {
	world *world.World
}

func NewBeginSystem(w *world.World) *BeginSystem {
	return &BeginSystem{world: w}
}

func (s *BeginSystem) Phase() coresys.Phase { return coresys.PhaseBegin }

func (s *BeginSystem) Update(_ float64) error {
	w := s.world
	w.Moved.Clear()
	ResetRewards(w)
	w.Outcome = world.Outcome{State: world.Continue}
	w.ClearTransient()
	return nil
}

// ResetRewards zeroes LastReward for every known player.
func ResetRewards(w *world.World) {
	clear(w.LastReward)
	for _, p := range w.Players {
		w.LastReward[p.Faction] = 0
	}
}
