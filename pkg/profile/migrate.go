package profile

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrMigrateFailed = errors.New("profile: failed to apply migrations")

// Migrate applies the embedded schema migrations with goose. The pgx
// pool is bridged to database/sql because goose does not speak pgx
// natively; the wrapper shares the pool's underlying connections.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return errors.Join(ErrMigrateFailed, err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return errors.Join(ErrMigrateFailed, err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrateFailed, err)
	}
	return nil
}
