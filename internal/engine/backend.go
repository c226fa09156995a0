// Package engine is the driver the router talks to. It owns the world and
// the system pipeline and turns protocol packets into resets and ticks.
package engine

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skyrts/backend/internal/core/ecs"
	"github.com/skyrts/backend/internal/core/errs"
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/protocol"
	"github.com/skyrts/backend/internal/scenario"
	"github.com/skyrts/backend/internal/system"
	"github.com/skyrts/backend/internal/world"
	"go.uber.org/zap"
)

type Options struct {
	Bounds           world.Bounds
	CellSize         float64 // spatial index cell
	ObsCellSize      float64 // observation grid cell
	DeltaT           float64
	Seed             uint64
	Style            system.ActionStyle
	Rules            system.TriggerRules
	ReplayMode       bool
	StrictIDs        bool
	ReclaimThreshold uint64
}

// Backend drives one simulation. Not safe for concurrent use; the game
// loop goroutine owns it.
type Backend struct {
	world  *world.World
	runner *coresys.Runner
	init   *system.Initializer
	scen   scenario.Scenario
	opts   Options

	outbox protocol.MultiMessage
	digest uint64

	rec Recorder
	log *zap.Logger
}

func New(opts Options, rec Recorder, log *zap.Logger) *Backend {
	if opts.Style == "" {
		opts.Style = system.StyleAuto
	}
	if opts.Rules == (system.TriggerRules{}) {
		opts.Rules = system.DefaultTriggerRules()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	w := world.New(world.Options{
		Bounds:   opts.Bounds,
		CellSize: opts.CellSize,
		DeltaT:   opts.DeltaT,
		Seed:     opts.Seed,
	})
	w.IDs().Strict = opts.StrictIDs
	if opts.ReclaimThreshold > 0 {
		w.IDs().ReclaimThreshold = ecs.EntityID(opts.ReclaimThreshold)
	}

	b := &Backend{
		world:  w,
		runner: coresys.NewRunner(),
		init:   system.NewInitializer(w, log),
		opts:   opts,
		rec:    rec,
		log:    log,
	}
	b.runner.Register(system.NewBeginSystem(w))
	b.runner.Register(system.NewInputSystem(w, opts.Style, log))
	b.runner.Register(system.NewMovementSystem(w))
	b.runner.Register(system.NewTriggerSystem(w, opts.Rules, log))
	b.runner.Register(system.NewRenderSystem(w))
	b.runner.Register(system.NewObservationSystem(w, opts.ObsCellSize))
	return b
}

// World exposes the simulation state, read-only by convention.
func (b *Backend) World() *world.World { return b.world }

// StateDigest is the xxhash of the last observation's features.
func (b *Backend) StateDigest() uint64 { return b.digest }

func (b *Backend) ReplayMode() bool { return b.opts.ReplayMode }

// LoadScenario opens the scenario at path and installs it.
func (b *Backend) LoadScenario(path string) error {
	scen, err := OpenScenario(path, b.log)
	if err != nil {
		return errs.Scenario(err, "open %s", path)
	}
	if err := b.SetScenario(scen); err != nil {
		closeScenario(scen)
		return err
	}
	b.log.Info("scenario ready", zap.String("path", path))
	return nil
}

// SetScenario installs an already constructed scenario.
func (b *Backend) SetScenario(scen scenario.Scenario) error {
	if err := b.init.Load(scen); err != nil {
		return err
	}
	if b.scen != nil && b.scen != scen {
		closeScenario(b.scen)
	}
	b.scen = scen
	return nil
}

func closeScenario(s scenario.Scenario) {
	switch c := s.(type) {
	case interface{ Close() }:
		c.Close()
	case io.Closer:
		c.Close()
	}
}

// Close releases the scenario runtime.
func (b *Backend) Close() {
	if b.scen != nil {
		closeScenario(b.scen)
		b.scen = nil
	}
}

// Reset starts a new episode: VizInit, the full Viz frame, then State.
func (b *Backend) Reset() (*protocol.MultiMessage, error) {
	if err := b.init.Reset(); err != nil {
		return nil, err
	}
	w := b.world
	if err := b.runner.TickPhase(coresys.PhaseOutput, w.DeltaT); err != nil {
		return nil, err
	}
	if err := b.runner.TickPhase(coresys.PhaseObserve, w.DeltaT); err != nil {
		return nil, err
	}
	b.rec.EpisodeStarted()

	out := &protocol.MultiMessage{}
	out.Push(protocol.Packet{Src: protocol.Backend, Dest: protocol.Viz, VizInit: &protocol.VizInit{}})
	b.pushFrame(out)
	b.log.Debug("reset",
		zap.Uint64("episode", w.Episode),
		zap.Int("entities", len(w.Entities())),
		zap.Uint64("digest", b.digest))
	return out, nil
}

// ResetWithSeed reseeds the master RNG under its current salt, then resets.
func (b *Backend) ResetWithSeed(seed uint64) (*protocol.MultiMessage, error) {
	b.world.Rng.Seed(seed)
	return b.Reset()
}

// Tick advances one step. A terminal world returns an empty message and
// stays unchanged until the next reset.
func (b *Backend) Tick(action *protocol.Action) (*protocol.MultiMessage, error) {
	w := b.world
	out := &protocol.MultiMessage{}
	if w.Terminal {
		return out, nil
	}
	start := time.Now()
	w.PendingAction = action
	if err := b.runner.Tick(w.DeltaT); err != nil {
		b.log.Error("tick aborted", zap.Uint64("tick", w.Tick), zap.Error(err))
		return nil, err
	}
	w.Tick++

	b.pushFrame(out)
	for _, f := range w.Faults {
		b.rec.CommandDropped(f.Kind.String())
		out.Push(errorPacket(f.Error(), false))
	}
	b.rec.CommandsIssued(len(w.Commands))
	b.rec.TickObserved(time.Since(start))
	if w.Terminal {
		b.rec.EpisodeFinished(w.Outcome.State.String())
	}
	return out, nil
}

func (b *Backend) pushFrame(out *protocol.MultiMessage) {
	w := b.world
	frame := w.Frame
	if frame == nil {
		frame = &protocol.VizFrame{Entities: []protocol.VizEntity{}}
	}
	out.Push(protocol.Packet{Src: protocol.Backend, Dest: protocol.Viz, Viz: frame})
	if w.Observation != nil {
		b.digest = system.Digest(w.Observation.Features)
		out.Push(protocol.Packet{Src: protocol.Backend, Dest: protocol.Agent, State: w.Observation.ToProto()})
	}
}

// Diverge reseeds the master RNG from OS entropy so a restored snapshot
// stops replaying its recorded trajectory. Ignored in replay mode.
func (b *Backend) Diverge() {
	if b.opts.ReplayMode {
		b.log.Debug("diverge ignored in replay mode")
		return
	}
	b.world.Rng.Diverge()
}

// Serialize snapshots the world. The diverging variant diverges afterwards.
func (b *Backend) Serialize(diverging bool) ([]byte, error) {
	snap, err := b.world.Save()
	if err != nil {
		return nil, err
	}
	data, err := world.MarshalSnapshot(snap)
	if err != nil {
		return nil, err
	}
	b.rec.Snapshot("save")
	if diverging {
		b.Diverge()
	}
	return data, nil
}

// Deserialize replaces the world with a snapshot. On error nothing changes.
func (b *Backend) Deserialize(buf []byte, diverging bool) error {
	snap, err := world.UnmarshalSnapshot(buf)
	if err != nil {
		return err
	}
	if err := b.world.Restore(snap); err != nil {
		return err
	}
	b.world.NeedsKeyInfo = true
	if err := b.runner.TickPhase(coresys.PhaseObserve, b.world.DeltaT); err != nil {
		return err
	}
	b.digest = system.Digest(b.world.Observation.Features)
	b.rec.Snapshot("load")
	if diverging {
		b.Diverge()
	}
	return nil
}

// ProcessMsg handles one packet addressed to the backend. Output goes to
// the outbox (see Messages). Non-fatal failures become Error packets; a
// fatal one is also returned.
func (b *Backend) ProcessMsg(pkt *protocol.Packet) error {
	out, err := b.handle(pkt)
	b.outbox.Merge(out)
	if err == nil {
		return nil
	}
	fatal := true
	var e *errs.Error
	if errors.As(err, &e) {
		fatal = e.Fatal
	}
	b.outbox.Push(errorPacket(err.Error(), fatal))
	if !fatal {
		b.log.Warn("packet rejected", zap.String("kind", pkt.Kind()), zap.Error(err))
		return nil
	}
	return err
}

// ProcessBatch handles a batch of packets. Consecutive actions collapse
// into one tick driven by the last of them.
func (b *Backend) ProcessBatch(m *protocol.MultiMessage) error {
	var pending *protocol.Packet
	flush := func() error {
		if pending == nil {
			return nil
		}
		p := pending
		pending = nil
		return b.ProcessMsg(p)
	}
	for i := range m.Packets {
		pkt := &m.Packets[i]
		if pkt.Action != nil {
			if pending != nil {
				b.log.Debug("action superseded", zap.Uint64("tick", b.world.Tick))
			}
			pending = pkt
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		if err := b.ProcessMsg(pkt); err != nil {
			return err
		}
	}
	return flush()
}

func (b *Backend) handle(pkt *protocol.Packet) (*protocol.MultiMessage, error) {
	switch {
	case pkt.Config != nil:
		return nil, b.configure(pkt.Config)
	case pkt.ResetEnv != nil:
		if !*pkt.ResetEnv {
			return nil, nil
		}
		return b.Reset()
	case pkt.Action != nil:
		return b.Tick(pkt.Action)
	case pkt.SerReq != nil:
		data, err := b.Serialize(pkt.SerReq.Diverging)
		if err != nil {
			return nil, err
		}
		out := &protocol.MultiMessage{}
		out.Push(protocol.Packet{Src: protocol.Backend, Dest: protocol.Core, SerResp: &protocol.SerResp{Serialized: data}})
		return out, nil
	case pkt.Deserialize != nil:
		return nil, b.Deserialize(pkt.Deserialize.Serialized, pkt.Deserialize.Diverging)
	}
	return nil, errs.UnsupportedAction("backend does not handle %s packets", pkt.Kind())
}

func (b *Backend) configure(cfg *protocol.Config) error {
	if cfg.BackendCfg == nil {
		return nil
	}
	b.opts.ReplayMode = cfg.BackendCfg.IsReplayMode
	if path := cfg.BackendCfg.ScenarioPath; path != "" {
		if err := b.LoadScenario(path); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	b.log.Info("backend configured",
		zap.Bool("replay", b.opts.ReplayMode),
		zap.String("scenario", cfg.BackendCfg.ScenarioPath))
	return nil
}

// Messages drains the outbox.
func (b *Backend) Messages() *protocol.MultiMessage {
	out := &protocol.MultiMessage{Packets: b.outbox.Packets}
	b.outbox.Packets = nil
	return out
}

func errorPacket(desc string, fatal bool) protocol.Packet {
	return protocol.Packet{
		Src:   protocol.Backend,
		Dest:  protocol.Core,
		Error: &protocol.Error{Description: desc, Fatal: fatal},
	}
}
