package legacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/store"
)

// SourceName labels legacy runs in the audit trail.
const SourceName = "legacy"

const (
	defaultUnit   = "%"
	historicalSrc = "Dados históricos"
	sampleNote    = "Dados de exemplo para testes"
)

// Stats summarizes one MigrateIndicators call.
type Stats struct {
	model.Counts
	CategoriesCreated int
	Run               *model.SyncRun
}

// Migrator writes legacy indicator definitions and sample values.
type Migrator struct {
	st      store.Store
	repo    *Repository
	clock   clockwork.Clock
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithClock sets the clock used for run timing.
func WithClock(c clockwork.Clock) Option {
	return func(m *Migrator) { m.clock = c }
}

// WithMetrics records record and run metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Migrator) { m.metrics = metrics }
}

// NewMigrator creates a Migrator reading from repo.
func NewMigrator(st store.Store, repo *Repository, opts ...Option) *Migrator {
	m := &Migrator{
		st:    st,
		repo:  repo,
		clock: clockwork.NewRealClock(),
		log:   zap.L().With(zap.String("component", "legacy")),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MigrateIndicators upserts every legacy entry in its own transaction and
// writes one sync run. A load failure aborts the migration and is returned
// after the audit attempt.
func (m *Migrator) MigrateIndicators(ctx context.Context) (*Stats, error) {
	start := m.clock.Now()
	run := &model.SyncRun{
		ID:        uuid.NewString(),
		Source:    SourceName,
		Endpoint:  m.repo.Path(),
		StartedAt: start,
	}
	stats := &Stats{Run: run}

	stageErr := m.migrate(ctx, stats)

	stats.Counts.Apply(run)
	run.Status = stats.Counts.Status(stageErr)
	if stageErr != nil {
		run.ErrorMessage = stageErr.Error()
	}
	run.CompletedAt = m.clock.Now()
	run.Elapsed = run.CompletedAt.Sub(start)

	if err := m.st.RecordSyncRun(context.WithoutCancel(ctx), run); err != nil {
		m.log.Error("failed to record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
	m.metrics.ObserveRun(run)

	if stageErr != nil {
		m.log.Error("migration failed", zap.Error(stageErr))
		return stats, stageErr
	}

	m.log.Info("migration complete",
		zap.Int("migrated", stats.Inserted+stats.Updated),
		zap.Int("categories_created", stats.CategoriesCreated),
		zap.Int("failed", stats.Failed),
	)
	if stats.Failed > 0 {
		m.log.Warn("migration finished with errors", zap.Int("failed", stats.Failed))
	}
	return stats, nil
}

func (m *Migrator) migrate(ctx context.Context, stats *Stats) error {
	doc, err := m.repo.Load()
	if err != nil {
		return err
	}
	m.log.Info("legacy document loaded",
		zap.String("path", m.repo.Path()),
		zap.Int("indicators", len(doc.Indicators)),
	)

	for _, e := range doc.Indicators {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "legacy: migrate indicators")
		}
		stats.Processed++

		inserted, created, err := m.migrateEntry(ctx, e)
		if err != nil {
			stats.Failed++
			m.metrics.ObserveRecords(SourceName, monitoring.OutcomeFailed, 1)
			m.log.Error("indicator failed", zap.String("name", e.Name), zap.Error(err))
			continue
		}
		if created {
			stats.CategoriesCreated++
			m.log.Info("category created", zap.String("category", categoryName(e)))
		}
		if inserted {
			stats.Inserted++
			m.metrics.ObserveRecords(SourceName, monitoring.OutcomeInserted, 1)
		} else {
			stats.Updated++
			m.metrics.ObserveRecords(SourceName, monitoring.OutcomeUpdated, 1)
		}
	}
	return nil
}

func categoryName(e Entry) string {
	if name := strings.TrimSpace(e.Category); name != "" {
		return name
	}
	return DefaultCategory
}

// migrateEntry commits one entry, creating its category when missing.
func (m *Migrator) migrateEntry(ctx context.Context, e Entry) (inserted, categoryCreated bool, err error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return false, false, eris.Wrap(model.ErrSourceMalformed, "legacy: indicator without name")
	}

	tx, err := m.st.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	catName := categoryName(e)
	cat, err := tx.CategoryByName(ctx, catName)
	if err != nil {
		return false, false, err
	}
	if cat == nil {
		cat = &model.Category{
			Name:        catName,
			Description: "Indicadores da categoria " + catName,
			Color:       CategoryColor(catName),
		}
		if err := tx.InsertCategory(ctx, cat); err != nil {
			return false, false, err
		}
		categoryCreated = true
	}

	unit := e.Unit
	if unit == "" {
		unit = defaultUnit
	}
	def := model.IndicatorDefinition{
		Code:           NaturalCode(name),
		Name:           name,
		Description:    e.Description,
		CategoryID:     cat.ID,
		Unit:           unit,
		TargetValue:    e.Target,
		HigherIsBetter: true,
		DataSource:     historicalSrc,
	}

	existing, err := tx.IndicatorByCode(ctx, def.Code)
	if err != nil {
		return false, false, err
	}
	if existing != nil {
		err = tx.UpdateIndicator(ctx, existing.ID, def.Update())
	} else {
		err = tx.InsertIndicator(ctx, &def)
		inserted = true
	}
	if err != nil {
		return false, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, eris.Wrap(model.ErrPersistenceFailure, err.Error())
	}
	return inserted, categoryCreated, nil
}

// SampleOptions bounds SynthesizeSamples.
type SampleOptions struct {
	Regions    int
	Indicators int
	Year       int
}

func (o *SampleOptions) defaults() {
	if o.Regions <= 0 {
		o.Regions = 5
	}
	if o.Indicators <= 0 {
		o.Indicators = 3
	}
	if o.Year <= 0 {
		o.Year = 2024
	}
}

// SampleValue is the synthetic value stored for a sub-region.
func SampleValue(subRegionID int64) float64 {
	return 70 + float64((subRegionID*2)%30)
}

// SynthesizeSamples inserts demo values for the first sub-regions and
// indicators, skipping pairs that already have one. It runs in a single
// transaction and returns the number of values written.
func (m *Migrator) SynthesizeSamples(ctx context.Context, opts SampleOptions) (int, error) {
	opts.defaults()

	tx, err := m.st.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "legacy: begin samples")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	subs, err := tx.ListSubRegions(ctx, opts.Regions)
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		m.log.Warn("no sub-regions found, run refsync first")
		return 0, nil
	}
	defs, err := tx.ListIndicators(ctx, opts.Indicators)
	if err != nil {
		return 0, err
	}
	if len(defs) == 0 {
		m.log.Warn("no indicators found, run the migration first")
		return 0, nil
	}

	now := m.clock.Now().UTC()
	ref := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var written int
	for _, s := range subs {
		for _, d := range defs {
			has, err := tx.HasIndicatorValue(ctx, s.ID, d.ID)
			if err != nil {
				return 0, err
			}
			if has {
				continue
			}
			v := &model.IndicatorValue{
				SubRegionID:   s.ID,
				IndicatorID:   d.ID,
				Value:         SampleValue(s.ID),
				Year:          opts.Year,
				ReferenceDate: &ref,
				DataQuality:   model.QualityGood,
				Notes:         sampleNote,
			}
			if err := tx.InsertIndicatorValue(ctx, v); err != nil {
				return 0, err
			}
			written++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(model.ErrPersistenceFailure, err.Error())
	}
	m.log.Info("sample values created", zap.Int("sub_regions", len(subs)), zap.Int("values", written))
	return written, nil
}
