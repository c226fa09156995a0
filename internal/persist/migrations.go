package persist

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Snapshot checkpoints and the episode log. One file per schema version.
//
//go:embed migrations/*.sql
var migrations embed.FS

// LatestSchema is the highest migration version compiled into the binary.
func LatestSchema() (int64, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, name := range names {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", name, err)
		}
		latest = max(latest, v)
	}
	return latest, nil
}

// Migrate brings the snapshot and episode log tables up to date and returns
// the schema version the database ends on. A database ahead of this build is
// refused.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	latest, err := LatestSchema()
	if err != nil {
		return 0, err
	}
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return 0, fmt.Errorf("migrate snapshot schema: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if version > latest {
		return version, fmt.Errorf("schema version %d is newer than this build (%d)", version, latest)
	}
	return version, nil
}
