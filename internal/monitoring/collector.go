package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/urbix/urbix-etl/internal/model"
)

// SyncSnapshot summarizes the synchronization runs inside a lookback window.
type SyncSnapshot struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Partial int `json:"partial"`
	Error   int `json:"error"`

	RecordsProcessed int     `json:"records_processed"`
	RecordsFailed    int     `json:"records_failed"`
	FailRate         float64 `json:"fail_rate"`

	// LastBySource is the most recent run of each source.
	LastBySource map[string]model.SyncRun `json:"last_by_source"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// SyncRunLister is the store capability the collector needs.
type SyncRunLister interface {
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// Collector gathers a snapshot from the sync run audit trail.
type Collector struct {
	runs  SyncRunLister
	clock clockwork.Clock
}

// NewCollector creates a new collector. A nil clock uses the real clock.
func NewCollector(runs SyncRunLister, clock clockwork.Clock) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{runs: runs, clock: clock}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*SyncSnapshot, error) {
	now := c.clock.Now().UTC()
	snap := &SyncSnapshot{
		LastBySource:  make(map[string]model.SyncRun),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListSyncRuns(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sync runs")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch r.Status {
		case model.SyncStatusSuccess:
			snap.Success++
		case model.SyncStatusPartial:
			snap.Partial++
		case model.SyncStatusError:
			snap.Error++
		}
		snap.RecordsProcessed += r.Processed
		snap.RecordsFailed += r.Failed
		if _, seen := snap.LastBySource[r.Source]; !seen {
			snap.LastBySource[r.Source] = r
		}
	}

	if snap.RecordsProcessed > 0 {
		snap.FailRate = float64(snap.RecordsFailed) / float64(snap.RecordsProcessed)
	}
	return snap, nil
}
