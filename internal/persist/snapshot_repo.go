package persist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SnapshotRow represents a row from the snapshots table.
type SnapshotRow struct {
	ID        uuid.UUID
	Name      string
	Episode   uint64
	Tick      uint64
	Digest    uint64
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRepo stores serialized worlds by name.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes body under name, replacing any earlier snapshot of that name.
// Returns the row id, which is kept across overwrites.
func (r *SnapshotRepo) Save(ctx context.Context, name string, episode, tick, digest uint64, body []byte) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO snapshots (id, name, episode, tick, digest, body)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE
		 SET episode = EXCLUDED.episode, tick = EXCLUDED.tick, digest = EXCLUDED.digest,
		     body = EXCLUDED.body, updated_at = now()
		 RETURNING id`,
		uuid.New(), name, int64(episode), int64(tick), int64(digest), body,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Load returns the snapshot called name, or nil if there is none.
func (r *SnapshotRepo) Load(ctx context.Context, name string) (*SnapshotRow, error) {
	var row SnapshotRow
	var episode, tick, digest int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, episode, tick, digest, body, created_at, updated_at
		 FROM snapshots WHERE name = $1`, name,
	).Scan(&row.ID, &row.Name, &episode, &tick, &digest, &row.Body, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Episode, row.Tick, row.Digest = uint64(episode), uint64(tick), uint64(digest)
	return &row, nil
}

// List returns snapshot metadata, newest first. Bodies are not loaded.
func (r *SnapshotRepo) List(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, episode, tick, digest, created_at, updated_at
		 FROM snapshots ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var episode, tick, digest int64
		if err := rows.Scan(&s.ID, &s.Name, &episode, &tick, &digest, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Episode, s.Tick, s.Digest = uint64(episode), uint64(tick), uint64(digest)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes the snapshot called name. Reports whether a row existed.
func (r *SnapshotRepo) Delete(ctx context.Context, name string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
