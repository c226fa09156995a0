package system

import (
	"fmt"

	"github.com/skyrts/backend/internal/core/errs"
	"github.com/skyrts/backend/internal/rng"
	"github.com/skyrts/backend/internal/scenario"
	"github.com/skyrts/backend/internal/world"
	"go.uber.org/zap"
)

// Initializer seeds the world from a scenario. It is not a per-tick system;
// the driver calls Load once per scenario and Reset once per episode.
type Initializer struct {
	world  *world.World
	scen   scenario.Scenario
	stream *rng.Source
	log    *zap.Logger
}

func NewInitializer(w *world.World, log *zap.Logger) *Initializer {
	return &Initializer{world: w, stream: rng.New(0), log: log}
}

// Load runs the scenario's init and installs its players and unit types.
func (in *Initializer) Load(scen scenario.Scenario) error {
	desc, err := scen.Init()
	if err != nil {
		return errs.Scenario(err, "init")
	}
	table, err := desc.UnitTypesTable()
	if err != nil {
		return errs.Scenario(err, "unit types")
	}
	in.world.DeleteAll()
	in.world.UnitTypes = table
	in.world.Players = scenario.Players(desc.FactionCount())
	in.scen = scen
	in.log.Info("scenario loaded",
		zap.Int("factions", desc.FactionCount()),
		zap.Int("unit_types", table.Len()))
	return nil
}

// Loaded reports whether a scenario is installed.
func (in *Initializer) Loaded() bool { return in.scen != nil }

// Reset clears the world and spawns a new episode. On failure the world is
// left empty and Terminal so the controller can recover with another reset.
func (in *Initializer) Reset() error {
	w := in.world
	if in.scen == nil {
		w.Terminal = true
		return errs.New(errs.KindScenario, "no scenario loaded")
	}
	w.DeleteAll()
	w.Episode++
	w.Tick = 0
	w.Terminal = false
	w.PendingAction = nil
	w.Outcome = world.Outcome{State: world.Continue}
	ResetRewards(w)
	in.stream.Reseed(w.Rng)

	units, err := in.scen.Reset(in.stream)
	if err != nil {
		return in.fail(errs.Scenario(err, "reset"))
	}
	for i, u := range units {
		ut, ok := w.UnitTypes.Get(u.UnitType)
		if !ok {
			return in.fail(errs.Scenario(fmt.Errorf("unknown unit type %q", u.UnitType), "unit %d", i))
		}
		pos := world.Position{X: u.Pos.X, Y: u.Pos.Y}
		if _, err := w.Spawn(ut, pos, world.Faction(u.Faction)); err != nil {
			return in.fail(errs.Scenario(err, "unit %d", i))
		}
	}
	w.NeedsKeyInfo = true
	in.log.Debug("episode reset",
		zap.Uint64("episode", w.Episode),
		zap.Int("units", len(units)))
	return nil
}

func (in *Initializer) fail(err *errs.Error) error {
	in.world.DeleteAll()
	in.world.Terminal = true
	in.log.Error("scenario reset failed", zap.Error(err))
	return err
}
