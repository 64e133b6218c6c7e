package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the profile store's connection to the hosted
// project's Postgres database.
type PostgresConfig struct {
	ConnectionString string        `env:"PROFILE_PG_URL,required"`
	MaxOpenConns     int32         `env:"PROFILE_PG_MAX_OPEN_CONNS" envDefault:"10"`
	MinIdleConns     int32         `env:"PROFILE_PG_MIN_IDLE_CONNS" envDefault:"2"`
	MaxConnLifetime  time.Duration `env:"PROFILE_PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	RetryAttempts    int           `env:"PROFILE_PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval    time.Duration `env:"PROFILE_PG_RETRY_INTERVAL" envDefault:"5s"`
}

var ErrConnectFailed = errors.New("profile: failed to open postgres connection")

// Connect establishes a pgx pool with linear backoff between attempts so
// transient startup races with the database do not fail the process.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("profile: parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MinIdleConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	for i := 0; i < max(cfg.RetryAttempts, 1); i++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, ErrConnectFailed
}

// PostgresStore persists profiles in the user_profiles table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const profileColumns = `id, username, full_name, avatar_url, streak_count, total_challenges, wins_count, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, id)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profile: get: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (id, username, full_name, avatar_url, streak_count, total_challenges, wins_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+profileColumns,
		p.ID, p.Username, p.FullName, p.AvatarURL, p.StreakCount, p.TotalChallenges, p.WinsCount)

	stored, err := scanProfile(row)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("profile: create: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, update Update) (*Profile, error) {
	if update.IsZero() {
		return nil, ErrEmptyUpdate
	}

	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Username != nil {
		add("username", *update.Username)
	}
	if update.FullName != nil {
		add("full_name", *update.FullName)
	}
	if update.AvatarURL != nil {
		add("avatar_url", *update.AvatarURL)
	}
	if update.StreakCount != nil {
		add("streak_count", *update.StreakCount)
	}
	if update.TotalChallenges != nil {
		add("total_challenges", *update.TotalChallenges)
	}
	if update.WinsCount != nil {
		add("wins_count", *update.WinsCount)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE user_profiles SET %s WHERE id = $%d RETURNING `+profileColumns,
		strings.Join(sets, ", "), len(args))

	stored, err := scanProfile(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profile: update: %w", err)
	}
	return stored, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.FullName, &p.AvatarURL,
		&p.StreakCount, &p.TotalChallenges, &p.WinsCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// isDuplicateKey detects PostgreSQL unique constraint violations
// (SQLSTATE 23505). This is the only place driver error codes are
// inspected; everything above the store matches typed errors.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
