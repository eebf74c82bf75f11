package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/model"
)

// Pool is the subset of pgxpool.Pool the journal uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dispatch_journal (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	action     TEXT NOT NULL,
	team_id    TEXT NOT NULL DEFAULT '',
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	area       TEXT NOT NULL DEFAULT '',
	recipients INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dispatch_journal_created_at ON dispatch_journal(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_dispatch_journal_team_id ON dispatch_journal(team_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e model.JournalEntry) (*model.JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dispatch_journal (id, action, team_id, latitude, longitude, area, recipients, outcome, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Action), e.TeamID, e.Latitude, e.Longitude, e.Area, e.Recipients,
		string(e.Outcome), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: append journal entry %s", e.Action)
	}
	return &e, nil
}

func (s *PostgresStore) List(ctx context.Context, filter JournalFilter) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, action, team_id, latitude, longitude, area, recipients, outcome, detail, created_at
		 FROM dispatch_journal
		 WHERE ($1 = '' OR action = $1) AND ($2 = '' OR team_id = $2) AND created_at >= $3
		 ORDER BY created_at DESC LIMIT $4`,
		string(filter.Action), filter.TeamID, filter.Since, filter.limit(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list journal")
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		var (
			e               model.JournalEntry
			action, outcome string
		)
		if err := rows.Scan(&e.ID, &action, &e.TeamID, &e.Latitude, &e.Longitude, &e.Area,
			&e.Recipients, &outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan journal entry")
		}
		e.Action = model.JournalAction(action)
		e.Outcome = model.JournalOutcome(outcome)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate journal")
}
