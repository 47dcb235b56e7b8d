package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/urbix/urbix-etl/internal/db"
	"github.com/urbix/urbix-etl/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	var cfg db.PoolConfig
	if poolCfg != nil {
		cfg = db.PoolConfig{MaxConns: poolCfg.MaxConns, MinConns: poolCfg.MinConns}
	}
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS regions (
	id           BIGSERIAL PRIMARY KEY,
	code         TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL DEFAULT '',
	macroregion  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sub_regions (
	id         BIGSERIAL PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	region_id  BIGINT NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
	country    TEXT NOT NULL DEFAULT 'Brasil',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS indicator_categories (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '#6b7280'
);

CREATE TABLE IF NOT EXISTS indicators (
	id               BIGSERIAL PRIMARY KEY,
	code             TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	category_id      BIGINT REFERENCES indicator_categories(id),
	unit             TEXT NOT NULL DEFAULT '',
	target_value     DOUBLE PRECISION,
	is_higher_better BOOLEAN NOT NULL DEFAULT true,
	data_source      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS indicator_values (
	id             BIGSERIAL PRIMARY KEY,
	sub_region_id  BIGINT NOT NULL REFERENCES sub_regions(id) ON DELETE CASCADE,
	indicator_id   BIGINT NOT NULL REFERENCES indicators(id) ON DELETE CASCADE,
	value          DOUBLE PRECISION NOT NULL,
	year           INTEGER NOT NULL,
	reference_date DATE,
	data_quality   TEXT NOT NULL DEFAULT 'good',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	endpoint          TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_inserted  INTEGER NOT NULL DEFAULT 0,
	records_updated   INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT NOT NULL DEFAULT '',
	elapsed_ms        BIGINT NOT NULL DEFAULT 0,
	started_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sub_regions_region_id ON sub_regions(region_id);
CREATE INDEX IF NOT EXISTS idx_indicators_category_id ON indicators(category_id);
CREATE INDEX IF NOT EXISTS idx_indicator_values_pair ON indicator_values(sub_region_id, indicator_id);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

var (
	regionCols    = []string{"id", "code", "name", "abbreviation", "macroregion"}
	subRegionCols = []string{"id", "code", "name", "region_id", "country"}
	categoryCols  = []string{"id", "name", "description", "color"}
	syncRunCols   = []string{
		"id", "source", "endpoint", "status",
		"records_processed", "records_inserted", "records_updated", "records_failed",
		"error_message", "elapsed_ms", "started_at", "completed_at",
	}
)

// indicatorSelect flattens the nullable columns so they scan into plain types.
const indicatorSelect = `SELECT id, code, name, description, COALESCE(category_id, 0), unit,
	COALESCE(target_value, 0), target_value IS NOT NULL, is_higher_better, data_source
	FROM indicators`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: ensure schema")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Begin starts a transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &pgTx{tx: tx}, nil
}

// RecordSyncRun appends a run to the audit trail.
func (s *PostgresStore) RecordSyncRun(ctx context.Context, run *model.SyncRun) error {
	_, err := s.pool.Exec(ctx, db.InsertSQL("sync_runs", syncRunCols, ""),
		run.ID, run.Source, run.Endpoint, string(run.Status),
		run.Processed, run.Inserted, run.Updated, run.Failed,
		run.ErrorMessage, run.Elapsed.Milliseconds(), run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record sync run %s", run.ID)
	}
	return nil
}

// ListSyncRuns returns the most recent runs first.
func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, endpoint, status, records_processed, records_inserted,
		        records_updated, records_failed, error_message, elapsed_ms, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		var (
			r         model.SyncRun
			status    string
			elapsedMS int64
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Endpoint, &status,
			&r.Processed, &r.Inserted, &r.Updated, &r.Failed,
			&r.ErrorMessage, &elapsedMS, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		r.Status = model.SyncStatus(status)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate sync runs")
}

// pgTx implements Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(ctx), "postgres: commit")
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback")
	}
	return nil
}

func (t *pgTx) RegionByCode(ctx context.Context, code string) (*model.Region, error) {
	var r model.Region
	err := t.tx.QueryRow(ctx, db.SelectSQL("regions", regionCols, "code"), code).
		Scan(&r.ID, &r.Code, &r.Name, &r.Abbreviation, &r.Macroregion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get region %s", code)
	}
	return &r, nil
}

func (t *pgTx) InsertRegion(ctx context.Context, r *model.Region) error {
	err := t.tx.QueryRow(ctx, db.InsertSQL("regions", regionCols[1:], "id"),
		r.Code, r.Name, r.Abbreviation, r.Macroregion,
	).Scan(&r.ID)
	return eris.Wrapf(err, "postgres: insert region %s", r.Code)
}

func (t *pgTx) UpdateRegion(ctx context.Context, id int64, u model.RegionUpdate) error {
	_, err := t.tx.Exec(ctx, db.UpdateSQL("regions", []string{"name", "abbreviation", "macroregion"}, "id", true),
		u.Name, u.Abbreviation, u.Macroregion, id,
	)
	return eris.Wrapf(err, "postgres: update region %d", id)
}

func (t *pgTx) SubRegionByCode(ctx context.Context, code string) (*model.SubRegion, error) {
	var s model.SubRegion
	err := t.tx.QueryRow(ctx, db.SelectSQL("sub_regions", subRegionCols, "code"), code).
		Scan(&s.ID, &s.Code, &s.Name, &s.RegionID, &s.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sub-region %s", code)
	}
	return &s, nil
}

func (t *pgTx) InsertSubRegion(ctx context.Context, s *model.SubRegion) error {
	err := t.tx.QueryRow(ctx, db.InsertSQL("sub_regions", subRegionCols[1:], "id"),
		s.Code, s.Name, s.RegionID, s.Country,
	).Scan(&s.ID)
	return eris.Wrapf(err, "postgres: insert sub-region %s", s.Code)
}

func (t *pgTx) UpdateSubRegion(ctx context.Context, id int64, u model.SubRegionUpdate) error {
	_, err := t.tx.Exec(ctx, db.UpdateSQL("sub_regions", []string{"name", "region_id", "country"}, "id", true),
		u.Name, u.RegionID, u.Country, id,
	)
	return eris.Wrapf(err, "postgres: update sub-region %d", id)
}

func (t *pgTx) ListSubRegions(ctx context.Context, limit int) ([]model.SubRegion, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, code, name, region_id, country FROM sub_regions ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sub-regions")
	}
	defer rows.Close()

	var out []model.SubRegion
	for rows.Next() {
		var s model.SubRegion
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.RegionID, &s.Country); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sub-region")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sub-regions")
}

func (t *pgTx) CategoryByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	err := t.tx.QueryRow(ctx, db.SelectSQL("indicator_categories", categoryCols, "name"), name).
		Scan(&c.ID, &c.Name, &c.Description, &c.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get category %s", name)
	}
	return &c, nil
}

func (t *pgTx) InsertCategory(ctx context.Context, c *model.Category) error {
	err := t.tx.QueryRow(ctx, db.InsertSQL("indicator_categories", categoryCols[1:], "id"),
		c.Name, c.Description, c.Color,
	).Scan(&c.ID)
	return eris.Wrapf(err, "postgres: insert category %s", c.Name)
}

func scanIndicator(row pgx.Row) (*model.IndicatorDefinition, error) {
	var (
		d         model.IndicatorDefinition
		target    float64
		hasTarget bool
	)
	if err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.CategoryID, &d.Unit,
		&target, &hasTarget, &d.HigherIsBetter, &d.DataSource); err != nil {
		return nil, err
	}
	if hasTarget {
		d.TargetValue = &target
	}
	return &d, nil
}

func (t *pgTx) IndicatorByCode(ctx context.Context, code string) (*model.IndicatorDefinition, error) {
	d, err := scanIndicator(t.tx.QueryRow(ctx, indicatorSelect+` WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get indicator %s", code)
	}
	return d, nil
}

func (t *pgTx) InsertIndicator(ctx context.Context, d *model.IndicatorDefinition) error {
	cols := []string{"code", "name", "description", "category_id", "unit", "target_value", "is_higher_better", "data_source"}
	err := t.tx.QueryRow(ctx, db.InsertSQL("indicators", cols, "id"),
		d.Code, d.Name, d.Description, nullID(d.CategoryID), d.Unit, d.TargetValue, d.HigherIsBetter, d.DataSource,
	).Scan(&d.ID)
	return eris.Wrapf(err, "postgres: insert indicator %s", d.Code)
}

func (t *pgTx) UpdateIndicator(ctx context.Context, id int64, u model.IndicatorUpdate) error {
	cols := []string{"name", "description", "category_id", "unit", "target_value"}
	_, err := t.tx.Exec(ctx, db.UpdateSQL("indicators", cols, "id", true),
		u.Name, u.Description, nullID(u.CategoryID), u.Unit, u.TargetValue, id,
	)
	return eris.Wrapf(err, "postgres: update indicator %d", id)
}

func (t *pgTx) ListIndicators(ctx context.Context, limit int) ([]model.IndicatorDefinition, error) {
	rows, err := t.tx.Query(ctx, indicatorSelect+` ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list indicators")
	}
	defer rows.Close()

	var out []model.IndicatorDefinition
	for rows.Next() {
		d, err := scanIndicator(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan indicator")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate indicators")
}

func (t *pgTx) HasIndicatorValue(ctx context.Context, subRegionID, indicatorID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM indicator_values WHERE sub_region_id = $1 AND indicator_id = $2)`,
		subRegionID, indicatorID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check value %d/%d", subRegionID, indicatorID)
	}
	return exists, nil
}

func (t *pgTx) InsertIndicatorValue(ctx context.Context, v *model.IndicatorValue) error {
	cols := []string{"sub_region_id", "indicator_id", "value", "year", "reference_date", "data_quality", "notes"}
	err := t.tx.QueryRow(ctx, db.InsertSQL("indicator_values", cols, "id"),
		v.SubRegionID, v.IndicatorID, v.Value, v.Year, v.ReferenceDate, v.DataQuality, v.Notes,
	).Scan(&v.ID)
	return eris.Wrapf(err, "postgres: insert value %d/%d", v.SubRegionID, v.IndicatorID)
}
