package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbix/urbix-etl/internal/model"
)

type fakeRuns struct {
	runs []model.SyncRun
	err  error
}

func (f *fakeRuns) ListSyncRuns(_ context.Context, limit int) ([]model.SyncRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func TestCollect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	runs := &fakeRuns{runs: []model.SyncRun{
		{Source: "IBGE", Status: model.SyncStatusPartial, Processed: 100, Failed: 4, StartedAt: now.Add(-1 * time.Hour)},
		{Source: "legacy", Status: model.SyncStatusSuccess, Processed: 10, StartedAt: now.Add(-2 * time.Hour)},
		{Source: "IBGE", Status: model.SyncStatusError, Processed: 0, ErrorMessage: "boom", StartedAt: now.Add(-3 * time.Hour)},
		{Source: "IBGE", Status: model.SyncStatusSuccess, Processed: 50, StartedAt: now.Add(-48 * time.Hour)},
	}}

	snap, err := NewCollector(runs, clock).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Success)
	assert.Equal(t, 1, snap.Partial)
	assert.Equal(t, 1, snap.Error)
	assert.Equal(t, 110, snap.RecordsProcessed)
	assert.Equal(t, 4, snap.RecordsFailed)
	assert.InDelta(t, 4.0/110.0, snap.FailRate, 1e-9)
	assert.Equal(t, model.SyncStatusPartial, snap.LastBySource["IBGE"].Status)
	assert.Equal(t, model.SyncStatusSuccess, snap.LastBySource["legacy"].Status)
	assert.Equal(t, now, snap.CollectedAt)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeRuns{}, clockwork.NewFakeClock()).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Empty(t, snap.LastBySource)
}

func TestCollect_ListError(t *testing.T) {
	_, err := NewCollector(&fakeRuns{err: errors.New("db down")}, nil).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list sync runs")
}
