// Package persist keeps named world checkpoints and the finished-episode log
// in PostgreSQL.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skyrts/backend/internal/config"
	"go.uber.org/zap"
)

// DB is the pool shared by SnapshotRepo and EpisodeRepo.
type DB struct {
	Pool   *pgxpool.Pool
	Schema int64 // migration version after startup
	log    *zap.Logger
}

// NewDB connects, pings and migrates the checkpoint schema.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	schema, err := Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("checkpoint store ready",
		zap.Int64("schema", schema),
		zap.Int32("max_conns", poolCfg.MaxConns))
	return &DB{Pool: pool, Schema: schema, log: log}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
