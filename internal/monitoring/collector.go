package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/store"
)

// collectLimit caps the journal rows read per check.
const collectLimit = 10000

// Snapshot holds a point-in-time view of dispatch health.
type Snapshot struct {
	// Team dispatch actions (assign and unassign) within the lookback window.
	DispatchTotal    int     `json:"dispatch_total"`
	DispatchFailed   int     `json:"dispatch_failed"`
	DispatchFailRate float64 `json:"dispatch_fail_rate"`

	// Area alert broadcasts within the lookback window.
	BroadcastTotal      int `json:"broadcast_total"`
	BroadcastFailed     int `json:"broadcast_failed"`
	UnreachedRecipients int `json:"unreached_recipients"`

	// Sources that failed in the latest map load.
	FailedSources []string `json:"failed_sources,omitempty"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// JournalLister reads the dispatch journal.
type JournalLister interface {
	List(ctx context.Context, filter store.JournalFilter) ([]model.JournalEntry, error)
}

// SourceReporter reports the outcome of the latest map load.
type SourceReporter interface {
	FailedSources() []string
}

// Collector gathers health figures from the journal and the loaded map.
type Collector struct {
	journal JournalLister
	sources SourceReporter
}

// NewCollector creates a collector. sources may be nil.
func NewCollector(journal JournalLister, sources SourceReporter) *Collector {
	return &Collector{journal: journal, sources: sources}
}

// Collect summarizes the journal over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{Lookback: lookback, CollectedAt: now}

	entries, err := c.journal.List(ctx, store.JournalFilter{
		Since: now.Add(-lookback),
		Limit: collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list journal")
	}

	for _, e := range entries {
		failed := e.Outcome == model.OutcomeFailed
		switch e.Action {
		case model.JournalAssign, model.JournalUnassign:
			snap.DispatchTotal++
			if failed {
				snap.DispatchFailed++
			}
		case model.JournalAlert:
			snap.BroadcastTotal++
			if failed {
				snap.BroadcastFailed++
				snap.UnreachedRecipients += e.Recipients
			}
		}
	}
	if snap.DispatchTotal > 0 {
		snap.DispatchFailRate = float64(snap.DispatchFailed) / float64(snap.DispatchTotal)
	}

	if c.sources != nil {
		snap.FailedSources = c.sources.FailedSources()
	}
	return snap, nil
}
