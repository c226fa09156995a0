package persist

import (
	"context"
	"fmt"
)

// EpisodeEntry is one finished episode.
type EpisodeEntry struct {
	Session string // controller session id
	Episode uint64
	Ticks   uint64
	Outcome string // "victory", "defeat" or "continue" for an interrupted episode
	Reward  float64
	Digest  uint64 // feature digest of the final observation
}

// EpisodeRepo appends finished episodes to the episode log.
type EpisodeRepo struct {
	db *DB
}

func NewEpisodeRepo(db *DB) *EpisodeRepo {
	return &EpisodeRepo{db: db}
}

// WriteBatch writes entries in a single transaction.
func (r *EpisodeRepo) WriteBatch(ctx context.Context, entries []EpisodeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("episode log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO episode_log (session, episode, ticks, outcome, reward, digest)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Session, int64(e.Episode), int64(e.Ticks), e.Outcome, e.Reward, int64(e.Digest),
		); err != nil {
			return fmt.Errorf("episode log insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// CountByOutcome tallies logged episodes per outcome.
func (r *EpisodeRepo) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM episode_log GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}
