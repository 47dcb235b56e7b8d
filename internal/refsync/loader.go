// Package refsync loads reference geography into the store and records a
// sync run per invocation.
package refsync

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/store"
)

// Stage is the loader's position in a run.
type Stage string

const (
	StageNotStarted Stage = "not-started"
	StageRegions    Stage = "loading-regions"
	StageSubRegions Stage = "loading-subregions"
	StageLogging    Stage = "logging"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

const defaultBatchSize = 100

// Source provides the reference records.
type Source interface {
	Regions(ctx context.Context) ([]model.Region, error)
	// SubRegions returns every sub-region when regionCode is empty.
	SubRegions(ctx context.Context, regionCode string) ([]model.SubRegion, error)
	Endpoint() string
}

// Options configures a Loader.
type Options struct {
	SourceName string
	BatchSize  int
	Clock      clockwork.Clock
	Metrics    *monitoring.Metrics
}

// Loader copies a Source into a store.Store.
type Loader struct {
	st    store.Store
	src   Source
	opts  Options
	stage Stage
	log   *zap.Logger
}

// New creates a Loader.
func New(st store.Store, src Source, opts Options) *Loader {
	if opts.SourceName == "" {
		opts.SourceName = "IBGE"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Loader{
		st:    st,
		src:   src,
		opts:  opts,
		stage: StageNotStarted,
		log:   zap.L().With(zap.String("component", "refsync"), zap.String("source", opts.SourceName)),
	}
}

// Stage reports where the last or current run is.
func (l *Loader) Stage() Stage { return l.stage }

// Run loads regions then sub-regions and writes exactly one sync run. The
// returned error is the stage error, if any; the run is returned either way.
func (l *Loader) Run(ctx context.Context) (*model.SyncRun, error) {
	start := l.opts.Clock.Now()
	run := &model.SyncRun{
		ID:        uuid.NewString(),
		Source:    l.opts.SourceName,
		Endpoint:  l.src.Endpoint(),
		StartedAt: start,
	}
	l.log.Info("sync started", zap.String("run_id", run.ID), zap.String("endpoint", run.Endpoint))

	var counts model.Counts
	l.stage = StageRegions
	stageErr := l.loadRegions(ctx, &counts)
	if stageErr == nil {
		l.stage = StageSubRegions
		stageErr = l.loadSubRegions(ctx, &counts)
	}

	l.stage = StageLogging
	counts.Apply(run)
	run.Status = counts.Status(stageErr)
	if stageErr != nil {
		run.ErrorMessage = stageErr.Error()
	}
	run.CompletedAt = l.opts.Clock.Now()
	run.Elapsed = run.CompletedAt.Sub(start)

	l.audit(ctx, run)
	l.opts.Metrics.ObserveRun(run)

	if stageErr != nil {
		l.stage = StageFailed
		l.log.Error("sync failed", zap.String("run_id", run.ID), zap.Error(stageErr))
		return run, stageErr
	}

	l.stage = StageDone
	l.log.Info("sync complete",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("processed", run.Processed),
		zap.Int("inserted", run.Inserted),
		zap.Int("updated", run.Updated),
		zap.Int("failed", run.Failed),
		zap.Duration("elapsed", run.Elapsed),
	)
	return run, nil
}

// audit writes the run on a context detached from cancellation. Failures
// are logged only.
func (l *Loader) audit(ctx context.Context, run *model.SyncRun) {
	if err := l.st.RecordSyncRun(context.WithoutCancel(ctx), run); err != nil {
		l.log.Error("failed to record sync run",
			zap.String("run_id", run.ID),
			zap.Error(eris.Wrap(model.ErrPersistenceFailure, err.Error())),
		)
	}
}

func (l *Loader) record(outcome string, n int) {
	l.opts.Metrics.ObserveRecords(l.opts.SourceName, outcome, n)
}

func (l *Loader) loadRegions(ctx context.Context, counts *model.Counts) error {
	regions, err := l.src.Regions(ctx)
	if err != nil {
		return eris.Wrap(err, "refsync: fetch regions")
	}
	l.log.Info("loading regions", zap.Int("count", len(regions)))

	var stage model.Counts
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			counts.Add(stage)
			return eris.Wrap(err, "refsync: load regions")
		}
		stage.Processed++

		inserted, err := l.upsertRegion(ctx, r)
		switch {
		case err != nil:
			stage.Failed++
			l.record(monitoring.OutcomeFailed, 1)
			l.log.Error("region failed", zap.String("code", r.Code), zap.Error(err))
		case inserted:
			stage.Inserted++
			l.record(monitoring.OutcomeInserted, 1)
		default:
			stage.Updated++
			l.record(monitoring.OutcomeUpdated, 1)
		}
	}

	counts.Add(stage)
	l.log.Info("regions loaded",
		zap.Int("inserted", stage.Inserted),
		zap.Int("updated", stage.Updated),
		zap.Int("failed", stage.Failed),
	)
	return nil
}

// upsertRegion commits one region in its own transaction.
func (l *Loader) upsertRegion(ctx context.Context, r model.Region) (inserted bool, err error) {
	tx, err := l.st.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := tx.RegionByCode(ctx, r.Code)
	if err != nil {
		return false, err
	}
	if existing != nil {
		err = tx.UpdateRegion(ctx, existing.ID, r.Update())
	} else {
		err = tx.InsertRegion(ctx, &r)
		inserted = true
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	l.opts.Metrics.ObserveBatch(l.opts.SourceName, true)
	return inserted, nil
}
