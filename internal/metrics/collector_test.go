package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.EpisodeStarted()
	c.TickObserved(2 * time.Millisecond)
	c.TickObserved(3 * time.Millisecond)
	c.CommandsIssued(3)
	c.CommandDropped("malformed action")
	c.CommandDropped("malformed action")
	c.EpisodeFinished("victory")
	c.Snapshot("save")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Episodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.IssuedCommands))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DroppedCommands.WithLabelValues("malformed action")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EpisodeOutcomes.WithLabelValues("victory")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.EpisodeOutcomes.WithLabelValues("defeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotOps.WithLabelValues("save")))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "skyrts_tick_duration_seconds" {
			assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
			return
		}
	}
	t.Fatal("tick histogram not gathered")
}

func TestCollectorSharesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	require.NoError(t, err)
	b, err := NewCollector(reg)
	require.NoError(t, err)

	a.EpisodeStarted()
	b.EpisodeStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Episodes))
}

func TestCollectorIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyrts_ticks_total",
		Help: "Simulation ticks executed.",
	}, []string{"shard"}))
	_, err := NewCollector(reg)
	assert.Error(t, err)
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ActiveSessions.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "skyrts_active_sessions 1")
}
