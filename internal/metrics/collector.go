// Package metrics exports simulation counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the backend metrics. It satisfies engine.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	TickDuration    prometheus.Histogram
	Ticks           prometheus.Counter
	Episodes        prometheus.Counter
	EpisodeOutcomes *prometheus.CounterVec
	IssuedCommands  prometheus.Counter
	DroppedCommands *prometheus.CounterVec
	SnapshotOps     *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// NewCollector registers the backend metrics against reg, or the default
// registry when reg is nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}

	var err error
	if c.TickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyrts_tick_duration_seconds",
		Help:    "Wall time of one simulation tick.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})); err != nil {
		return nil, err
	}
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyrts_ticks_total",
		Help: "Simulation ticks executed.",
	})); err != nil {
		return nil, err
	}
	if c.Episodes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyrts_episodes_total",
		Help: "Episodes started by a reset.",
	})); err != nil {
		return nil, err
	}
	if c.EpisodeOutcomes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyrts_episode_outcomes_total",
		Help: "Finished episodes by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.IssuedCommands, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyrts_commands_issued_total",
		Help: "Move commands produced from agent actions.",
	})); err != nil {
		return nil, err
	}
	if c.DroppedCommands, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyrts_commands_dropped_total",
		Help: "Agent commands rejected, by error kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.SnapshotOps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyrts_snapshot_ops_total",
		Help: "World snapshots saved and loaded.",
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if c.ActiveSessions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyrts_active_sessions",
		Help: "Connected controller sessions.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) TickObserved(d time.Duration) {
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

func (c *Collector) EpisodeStarted() { c.Episodes.Inc() }

func (c *Collector) EpisodeFinished(outcome string) {
	c.EpisodeOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) CommandsIssued(n int) { c.IssuedCommands.Add(float64(n)) }

func (c *Collector) CommandDropped(kind string) {
	c.DroppedCommands.WithLabelValues(kind).Inc()
}

func (c *Collector) Snapshot(op string) { c.SnapshotOps.WithLabelValues(op).Inc() }

// register adds col to reg. An already registered collector of the same
// type is returned in its place.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return col, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return col, err
	}
	return col, nil
}
