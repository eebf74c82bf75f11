// Package store persists the dispatch journal, an append-only record of
// assign, unassign and alert outcomes.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/model"
)

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 100

// JournalFilter specifies criteria for listing journal entries.
type JournalFilter struct {
	Action model.JournalAction `json:"action,omitempty"`
	TeamID string              `json:"team_id,omitempty"`
	Since  time.Time           `json:"since,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

func (f JournalFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for the dispatch journal.
type Store interface {
	// Append records e, assigning its ID and CreatedAt when unset.
	Append(ctx context.Context, e model.JournalEntry) (*model.JournalEntry, error)
	// List returns entries newest first.
	List(ctx context.Context, filter JournalFilter) ([]model.JournalEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the configured driver and runs migrations. DriverNone (or an
// empty driver) returns a nil Store and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverNone:
		return nil, nil
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
