package refsync

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/store"
)

// batch is an open transaction plus the outcomes it will credit on commit.
type batch struct {
	l       *Loader
	tx      store.Tx
	pending model.Counts
}

func (b *batch) begin(ctx context.Context) (store.Tx, error) {
	if b.tx == nil {
		tx, err := b.l.st.Begin(ctx)
		if err != nil {
			return nil, err
		}
		b.tx = tx
	}
	return b.tx, nil
}

// commit credits the pending outcomes. A failed commit turns them into
// failures.
func (b *batch) commit(ctx context.Context, counts *model.Counts) {
	if b.tx == nil {
		return
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Commit(ctx); err != nil {
		b.l.log.Error("batch commit failed", zap.Error(err))
		_ = tx.Rollback(ctx)
		b.fail(counts)
		b.l.opts.Metrics.ObserveBatch(b.l.opts.SourceName, false)
		return
	}
	counts.Inserted += b.pending.Inserted
	counts.Updated += b.pending.Updated
	b.l.record(monitoring.OutcomeInserted, b.pending.Inserted)
	b.l.record(monitoring.OutcomeUpdated, b.pending.Updated)
	b.pending = model.Counts{}
	b.l.opts.Metrics.ObserveBatch(b.l.opts.SourceName, true)
}

// rollback discards the open transaction and counts its pending records as
// failed.
func (b *batch) rollback(ctx context.Context, counts *model.Counts) {
	if b.tx == nil {
		return
	}
	if err := b.tx.Rollback(ctx); err != nil {
		b.l.log.Warn("batch rollback failed", zap.Error(err))
	}
	b.tx = nil
	b.fail(counts)
	b.l.opts.Metrics.ObserveBatch(b.l.opts.SourceName, false)
}

func (b *batch) fail(counts *model.Counts) {
	n := b.pending.Inserted + b.pending.Updated
	counts.Failed += n
	b.l.record(monitoring.OutcomeFailed, n)
	b.pending = model.Counts{}
}

func (l *Loader) loadSubRegions(ctx context.Context, counts *model.Counts) error {
	subs, err := l.src.SubRegions(ctx, "")
	if err != nil {
		return eris.Wrap(err, "refsync: fetch sub-regions")
	}
	total := len(subs)
	l.log.Info("loading sub-regions", zap.Int("count", total), zap.Int("batch_size", l.opts.BatchSize))

	b := &batch{l: l}
	// Rolled back unless committed below.
	defer b.rollback(ctx, counts)

	for i, s := range subs {
		if err := ctx.Err(); err != nil {
			b.rollback(context.WithoutCancel(ctx), counts)
			return eris.Wrap(err, "refsync: load sub-regions")
		}
		counts.Processed++

		if err := l.upsertSubRegion(ctx, b, s); err != nil {
			counts.Failed++
			l.record(monitoring.OutcomeFailed, 1)
			if eris.Is(err, model.ErrRecordConflict) {
				l.log.Warn("sub-region skipped", zap.String("code", s.Code), zap.Error(err))
			} else {
				l.log.Error("sub-region failed", zap.String("code", s.Code), zap.Error(err))
				b.rollback(ctx, counts)
			}
		}

		if (i+1)%l.opts.BatchSize == 0 {
			b.commit(ctx, counts)
			l.log.Info("progress",
				zap.Int("processed", i+1),
				zap.Int("total", total),
				zap.Float64("pct", float64(i+1)/float64(total)*100),
			)
		}
	}

	b.commit(ctx, counts)
	l.log.Info("sub-regions loaded",
		zap.Int("inserted", counts.Inserted),
		zap.Int("updated", counts.Updated),
		zap.Int("failed", counts.Failed),
	)
	return nil
}

// upsertSubRegion writes s inside the open batch. A sub-region whose owning
// region is not stored returns ErrRecordConflict and leaves the batch intact.
func (l *Loader) upsertSubRegion(ctx context.Context, b *batch, s model.SubRegion) error {
	tx, err := b.begin(ctx)
	if err != nil {
		return err
	}

	region, err := tx.RegionByCode(ctx, s.RegionCode)
	if err != nil {
		return err
	}
	if region == nil {
		return eris.Wrapf(model.ErrRecordConflict, "refsync: sub-region %s: region %q not found", s.Code, s.RegionCode)
	}
	s.RegionID = region.ID
	if s.Country == "" {
		s.Country = model.DefaultCountry
	}

	existing, err := tx.SubRegionByCode(ctx, s.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := tx.UpdateSubRegion(ctx, existing.ID, s.Update()); err != nil {
			return err
		}
		b.pending.Updated++
		return nil
	}
	if err := tx.InsertSubRegion(ctx, &s); err != nil {
		return err
	}
	b.pending.Inserted++
	return nil
}
