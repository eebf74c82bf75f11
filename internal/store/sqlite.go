package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dispatch-console/internal/model"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dispatch_journal (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	team_id    TEXT NOT NULL DEFAULT '',
	latitude   REAL,
	longitude  REAL,
	area       TEXT NOT NULL DEFAULT '',
	recipients INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_journal_created_at ON dispatch_journal(created_at);
CREATE INDEX IF NOT EXISTS idx_dispatch_journal_team_id ON dispatch_journal(team_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, e model.JournalEntry) (*model.JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_journal (id, action, team_id, latitude, longitude, area, recipients, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.TeamID, nullFloat(e.Latitude), nullFloat(e.Longitude), e.Area,
		e.Recipients, string(e.Outcome), e.Detail, e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: append journal entry %s", e.Action)
	}
	return &e, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter JournalFilter) ([]model.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, team_id, latitude, longitude, area, recipients, outcome, detail, created_at
		 FROM dispatch_journal
		 WHERE (? = '' OR action = ?) AND (? = '' OR team_id = ?) AND created_at >= ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		string(filter.Action), string(filter.Action), filter.TeamID, filter.TeamID, since(filter.Since), filter.limit(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list journal")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate journal")
}

// since renders a lower bound comparable with the stored created_at text.
func since(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.JournalEntry, error) {
	var (
		e               model.JournalEntry
		action, outcome string
		lat, lng        sql.NullFloat64
		created         string
	)
	if err := row.Scan(&e.ID, &action, &e.TeamID, &lat, &lng, &e.Area, &e.Recipients,
		&outcome, &e.Detail, &created); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan journal entry")
	}
	e.Action = model.JournalAction(action)
	e.Outcome = model.JournalOutcome(outcome)
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lng.Valid {
		e.Longitude = &lng.Float64
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse created_at %q", created)
	}
	e.CreatedAt = t
	return &e, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
