package persist

import (
	"context"
	"os"
	"testing"

	"github.com/skyrts/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openTestDB connects to SKYRTS_TEST_DSN and skips when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SKYRTS_TEST_DSN")
	if dsn == "" {
		t.Skip("SKYRTS_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	_, err = db.Pool.Exec(ctx, `TRUNCATE snapshots, episode_log`)
	require.NoError(t, err)
	return db
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"00001_create_snapshots.sql", "00002_create_episode_log.sql"}, names)
}

func TestLatestSchema(t *testing.T) {
	v, err := LatestSchema()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestNewDBRecordsSchema(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, int64(2), db.Schema)
}

func TestNewDBRejectsBadDSN(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{DSN: "::not a dsn"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSnapshotRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)
	ctx := context.Background()

	missing, err := repo.Load(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	id, err := repo.Save(ctx, "checkpoint", 1, 10, 1<<63+5, []byte("tick: 10\n"))
	require.NoError(t, err)
	again, err := repo.Save(ctx, "checkpoint", 2, 3, 7, []byte("tick: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	row, err := repo.Load(ctx, "checkpoint")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, uint64(2), row.Episode)
	assert.Equal(t, uint64(3), row.Tick)
	assert.Equal(t, uint64(7), row.Digest)
	assert.Equal(t, "tick: 3\n", string(row.Body))

	_, err = repo.Save(ctx, "other", 1, 1, 1<<63+5, []byte("x"))
	require.NoError(t, err)
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, s := range list {
		assert.Nil(t, s.Body)
	}

	ok, err := repo.Delete(ctx, "checkpoint")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Delete(ctx, "checkpoint")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEpisodeRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewEpisodeRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.WriteBatch(ctx, nil))
	require.NoError(t, repo.WriteBatch(ctx, []EpisodeEntry{
		{Session: "a", Episode: 1, Ticks: 40, Outcome: "victory", Reward: 100},
		{Session: "a", Episode: 2, Ticks: 3, Outcome: "defeat", Reward: -100},
		{Session: "b", Episode: 1, Ticks: 90, Outcome: "victory", Reward: 100},
	}))
	counts, err := repo.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"victory": 2, "defeat": 1}, counts)
}
