package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	gonet "github.com/skyrts/backend/internal/net"
	"github.com/skyrts/backend/internal/persist"
	"github.com/skyrts/backend/internal/protocol"
	"go.uber.org/zap"
)

// SnapshotStore is implemented by persist.SnapshotRepo.
type SnapshotStore interface {
	Save(ctx context.Context, name string, episode, tick, digest uint64, body []byte) (uuid.UUID, error)
	Load(ctx context.Context, name string) (*persist.SnapshotRow, error)
}

// EpisodeLog is implemented by persist.EpisodeRepo.
type EpisodeLog interface {
	WriteBatch(ctx context.Context, entries []persist.EpisodeEntry) error
}

type HostOptions struct {
	Backend          Options
	Scenario         string
	SnapshotName     string // checkpoint restored on connect and written on disconnect
	PollInterval     time.Duration
	MaxFramesPerPoll int
	FlushInterval    time.Duration // episode log
}

type controller struct {
	sess    *gonet.Session
	backend *Backend
	logged  uint64 // last episode written to the episode log
}

// Host is the game loop. Every controller session gets its own Backend; all
// backends are driven from the goroutine running Run.
type Host struct {
	srv      *gonet.Server
	opts     HostOptions
	rec      Recorder
	snaps    SnapshotStore
	episodes EpisodeLog

	controllers []*controller
	pending     []persist.EpisodeEntry

	log *zap.Logger
}

// NewHost builds a host. snaps and episodes may be nil.
func NewHost(srv *gonet.Server, opts HostOptions, rec Recorder, snaps SnapshotStore, episodes EpisodeLog, log *zap.Logger) *Host {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.MaxFramesPerPoll <= 0 {
		opts.MaxFramesPerPoll = 8
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &Host{srv: srv, opts: opts, rec: rec, snaps: snaps, episodes: episodes, log: log}
}

// Run drives the loop until ctx is cancelled, then checkpoints and closes
// every session.
func (h *Host) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()
	flush := time.NewTicker(h.opts.FlushInterval)
	defer flush.Stop()

	for {
		select {
		case sess := <-h.srv.NewSessions():
			h.attach(sess)
		case id := <-h.srv.DeadSessions():
			h.detach(id)
		case <-ticker.C:
			h.poll()
		case <-flush.C:
			h.flushEpisodes()
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Sessions reports the number of attached controllers.
func (h *Host) Sessions() int { return len(h.controllers) }

func (h *Host) attach(sess *gonet.Session) {
	log := h.log.With(zap.String("session", sess.ID.String()))
	b := New(h.opts.Backend, h.rec, log)
	if err := b.LoadScenario(h.opts.Scenario); err != nil {
		log.Error("scenario load failed, closing session", zap.Error(err))
		out := &protocol.MultiMessage{}
		out.Push(errorPacket(err.Error(), true))
		sess.Send(out)
		sess.FlushOutput()
		sess.Close()
		return
	}
	h.restore(b, log)
	h.controllers = append(h.controllers, &controller{sess: sess, backend: b, logged: b.World().Episode})
	log.Info("backend attached", zap.String("scenario", h.opts.Scenario), zap.Int("sessions", len(h.controllers)))
}

func (h *Host) restore(b *Backend, log *zap.Logger) {
	if h.snaps == nil || h.opts.SnapshotName == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	row, err := h.snaps.Load(ctx, h.opts.SnapshotName)
	if err != nil {
		log.Warn("checkpoint load failed", zap.String("name", h.opts.SnapshotName), zap.Error(err))
		return
	}
	if row == nil {
		return
	}
	if err := b.Deserialize(row.Body, false); err != nil {
		log.Warn("checkpoint rejected", zap.String("name", row.Name), zap.Error(err))
		return
	}
	log.Info("checkpoint restored",
		zap.String("name", row.Name),
		zap.Uint64("episode", row.Episode),
		zap.Uint64("tick", row.Tick))
}

func (h *Host) detach(id uuid.UUID) {
	for i, c := range h.controllers {
		if c.sess.ID != id {
			continue
		}
		h.release(c)
		h.controllers = append(h.controllers[:i], h.controllers[i+1:]...)
		h.log.Info("backend detached", zap.String("session", id.String()), zap.Int("sessions", len(h.controllers)))
		return
	}
}

// release records an unfinished episode, writes the checkpoint and frees
// the backend.
func (h *Host) release(c *controller) {
	w := c.backend.World()
	if w.Episode > c.logged {
		h.record(c)
	}
	h.checkpoint(c)
	c.backend.Close()
}

func (h *Host) poll() {
	var closed []uuid.UUID
	for _, c := range h.controllers {
		if c.sess.IsClosed() {
			// Usually detached through DeadSessions first; this catches
			// notifications dropped on a full queue.
			closed = append(closed, c.sess.ID)
			continue
		}
		for range h.opts.MaxFramesPerPoll {
			var msg *protocol.MultiMessage
			select {
			case msg = <-c.sess.InQueue:
			default:
			}
			if msg == nil {
				break
			}
			if err := c.backend.ProcessBatch(msg); err != nil {
				h.log.Error("batch failed",
					zap.String("session", c.sess.ID.String()),
					zap.Uint64("tick", c.backend.World().Tick),
					zap.Error(err))
			}
			c.sess.Send(c.backend.Messages())
			h.track(c)
		}
		c.sess.FlushOutput()
	}
	for _, id := range closed {
		h.detach(id)
	}
}

// track logs the current episode once it turns terminal.
func (h *Host) track(c *controller) {
	w := c.backend.World()
	if w.Terminal && w.Episode > c.logged {
		h.record(c)
	}
}

func (h *Host) record(c *controller) {
	w := c.backend.World()
	h.pending = append(h.pending, persist.EpisodeEntry{
		Session: c.sess.ID.String(),
		Episode: w.Episode,
		Ticks:   w.Tick,
		Outcome: w.Outcome.State.String(),
		Reward:  w.TotalReward(),
		Digest:  c.backend.StateDigest(),
	})
	c.logged = w.Episode
}

func (h *Host) checkpoint(c *controller) {
	if h.snaps == nil || h.opts.SnapshotName == "" || c.backend.World().Episode == 0 {
		return
	}
	body, err := c.backend.Serialize(false)
	if err != nil {
		h.log.Warn("checkpoint serialize failed", zap.String("session", c.sess.ID.String()), zap.Error(err))
		return
	}
	w := c.backend.World()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.snaps.Save(ctx, h.opts.SnapshotName, w.Episode, w.Tick, c.backend.StateDigest(), body); err != nil {
		h.log.Warn("checkpoint save failed", zap.String("name", h.opts.SnapshotName), zap.Error(err))
	}
}

func (h *Host) flushEpisodes() {
	if len(h.pending) == 0 {
		return
	}
	if h.episodes == nil {
		h.pending = h.pending[:0]
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.episodes.WriteBatch(ctx, h.pending); err != nil {
		h.log.Warn("episode log flush failed", zap.Int("entries", len(h.pending)), zap.Error(err))
		return
	}
	h.pending = h.pending[:0]
}

func (h *Host) shutdown() {
	for _, c := range h.controllers {
		h.release(c)
		c.sess.Close()
	}
	h.controllers = nil
	h.flushEpisodes()
	h.log.Info("game loop stopped")
}
