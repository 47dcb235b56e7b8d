package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urbix/urbix-etl/internal/model"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// sqliteTimeFormat is fixed-width so text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using sqlx over modernc.org/sqlite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite database file with WAL mode and foreign keys on.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS regions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	code         TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL DEFAULT '',
	macroregion  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS sub_regions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	region_id  INTEGER NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
	country    TEXT NOT NULL DEFAULT 'Brasil',
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS indicator_categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '#6b7280'
);

CREATE TABLE IF NOT EXISTS indicators (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	code             TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	category_id      INTEGER REFERENCES indicator_categories(id),
	unit             TEXT NOT NULL DEFAULT '',
	target_value     REAL,
	is_higher_better INTEGER NOT NULL DEFAULT 1,
	data_source      TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS indicator_values (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	sub_region_id  INTEGER NOT NULL REFERENCES sub_regions(id) ON DELETE CASCADE,
	indicator_id   INTEGER NOT NULL REFERENCES indicators(id) ON DELETE CASCADE,
	value          REAL NOT NULL,
	year           INTEGER NOT NULL,
	reference_date TEXT,
	data_quality   TEXT NOT NULL DEFAULT 'good',
	notes          TEXT NOT NULL DEFAULT ''
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
	elapsed_ms        INTEGER NOT NULL DEFAULT 0,
	started_at        TEXT NOT NULL,
	completed_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sub_regions_region_id ON sub_regions(region_id);
CREATE INDEX IF NOT EXISTS idx_indicators_category_id ON indicators(category_id);
CREATE INDEX IF NOT EXISTS idx_indicator_values_pair ON indicator_values(sub_region_id, indicator_id);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

// EnsureSchema creates the tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: ensure schema")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Begin starts a transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteSyncRun struct {
	ID           string `db:"id"`
	Source       string `db:"source"`
	Endpoint     string `db:"endpoint"`
	Status       string `db:"status"`
	Processed    int    `db:"records_processed"`
	Inserted     int    `db:"records_inserted"`
	Updated      int    `db:"records_updated"`
	Failed       int    `db:"records_failed"`
	ErrorMessage string `db:"error_message"`
	ElapsedMS    int64  `db:"elapsed_ms"`
	StartedAt    string `db:"started_at"`
	CompletedAt  string `db:"completed_at"`
}

// RecordSyncRun appends a run to the audit trail.
func (s *SQLiteStore) RecordSyncRun(ctx context.Context, run *model.SyncRun) error {
	row := sqliteSyncRun{
		ID:           run.ID,
		Source:       run.Source,
		Endpoint:     run.Endpoint,
		Status:       string(run.Status),
		Processed:    run.Processed,
		Inserted:     run.Inserted,
		Updated:      run.Updated,
		Failed:       run.Failed,
		ErrorMessage: run.ErrorMessage,
		ElapsedMS:    run.Elapsed.Milliseconds(),
		StartedAt:    run.StartedAt.UTC().Format(sqliteTimeFormat),
		CompletedAt:  run.CompletedAt.UTC().Format(sqliteTimeFormat),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sync_runs (id, source, endpoint, status, records_processed, records_inserted,
		  records_updated, records_failed, error_message, elapsed_ms, started_at, completed_at)
		 VALUES (:id, :source, :endpoint, :status, :records_processed, :records_inserted,
		  :records_updated, :records_failed, :error_message, :elapsed_ms, :started_at, :completed_at)`,
		row,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record sync run %s", run.ID)
	}
	return nil
}

// ListSyncRuns returns the most recent runs first.
func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	var rows []sqliteSyncRun
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}

	runs := make([]model.SyncRun, 0, len(rows))
	for _, r := range rows {
		started, err := time.Parse(sqliteTimeFormat, r.StartedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse started_at of %s", r.ID)
		}
		completed, err := time.Parse(sqliteTimeFormat, r.CompletedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse completed_at of %s", r.ID)
		}
		runs = append(runs, model.SyncRun{
			ID:           r.ID,
			Source:       r.Source,
			Endpoint:     r.Endpoint,
			Status:       model.SyncStatus(r.Status),
			Processed:    r.Processed,
			Inserted:     r.Inserted,
			Updated:      r.Updated,
			Failed:       r.Failed,
			ErrorMessage: r.ErrorMessage,
			Elapsed:      time.Duration(r.ElapsedMS) * time.Millisecond,
			StartedAt:    started,
			CompletedAt:  completed,
		})
	}
	return runs, nil
}

// sqliteTx implements Tx on a sqlx transaction.
type sqliteTx struct {
	tx *sqlx.Tx
}

func (t *sqliteTx) Commit(_ context.Context) error {
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback")
	}
	return nil
}

// get runs a single-row query, mapping no rows to found == false.
func (t *sqliteTx) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := t.tx.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *sqliteTx) insert(ctx context.Context, query string, arg any) (int64, error) {
	res, err := t.tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *sqliteTx) RegionByCode(ctx context.Context, code string) (*model.Region, error) {
	var r model.Region
	found, err := t.get(ctx, &r,
		`SELECT id, code, name, abbreviation, macroregion FROM regions WHERE code = ?`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %s", code)
	}
	if !found {
		return nil, nil
	}
	return &r, nil
}

func (t *sqliteTx) InsertRegion(ctx context.Context, r *model.Region) error {
	id, err := t.insert(ctx,
		`INSERT INTO regions (code, name, abbreviation, macroregion)
		 VALUES (:code, :name, :abbreviation, :macroregion)`, r)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert region %s", r.Code)
	}
	r.ID = id
	return nil
}

func (t *sqliteTx) UpdateRegion(ctx context.Context, id int64, u model.RegionUpdate) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE regions SET name = ?, abbreviation = ?, macroregion = ?,
		  updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		u.Name, u.Abbreviation, u.Macroregion, id)
	return eris.Wrapf(err, "sqlite: update region %d", id)
}

func (t *sqliteTx) SubRegionByCode(ctx context.Context, code string) (*model.SubRegion, error) {
	var s model.SubRegion
	found, err := t.get(ctx, &s,
		`SELECT id, code, name, region_id, country FROM sub_regions WHERE code = ?`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sub-region %s", code)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (t *sqliteTx) InsertSubRegion(ctx context.Context, s *model.SubRegion) error {
	id, err := t.insert(ctx,
		`INSERT INTO sub_regions (code, name, region_id, country)
		 VALUES (:code, :name, :region_id, :country)`, s)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert sub-region %s", s.Code)
	}
	s.ID = id
	return nil
}

func (t *sqliteTx) UpdateSubRegion(ctx context.Context, id int64, u model.SubRegionUpdate) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE sub_regions SET name = ?, region_id = ?, country = ?,
		  updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		u.Name, u.RegionID, u.Country, id)
	return eris.Wrapf(err, "sqlite: update sub-region %d", id)
}

func (t *sqliteTx) ListSubRegions(ctx context.Context, limit int) ([]model.SubRegion, error) {
	var out []model.SubRegion
	err := t.tx.SelectContext(ctx, &out,
		`SELECT id, code, name, region_id, country FROM sub_regions ORDER BY id LIMIT ?`, limit)
	return out, eris.Wrap(err, "sqlite: list sub-regions")
}

func (t *sqliteTx) CategoryByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	found, err := t.get(ctx, &c,
		`SELECT id, name, description, color FROM indicator_categories WHERE name = ?`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get category %s", name)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

func (t *sqliteTx) InsertCategory(ctx context.Context, c *model.Category) error {
	id, err := t.insert(ctx,
		`INSERT INTO indicator_categories (name, description, color)
		 VALUES (:name, :description, :color)`, c)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert category %s", c.Name)
	}
	c.ID = id
	return nil
}

const sqliteIndicatorSelect = `SELECT id, code, name, description, COALESCE(category_id, 0) AS category_id,
	unit, target_value, is_higher_better, data_source FROM indicators`

func (t *sqliteTx) IndicatorByCode(ctx context.Context, code string) (*model.IndicatorDefinition, error) {
	var d model.IndicatorDefinition
	found, err := t.get(ctx, &d, sqliteIndicatorSelect+` WHERE code = ?`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get indicator %s", code)
	}
	if !found {
		return nil, nil
	}
	return &d, nil
}

func (t *sqliteTx) InsertIndicator(ctx context.Context, d *model.IndicatorDefinition) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO indicators (code, name, description, category_id, unit, target_value, is_higher_better, data_source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Code, d.Name, d.Description, nullID(d.CategoryID), d.Unit, d.TargetValue, d.HigherIsBetter, d.DataSource)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert indicator %s", d.Code)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert indicator %s", d.Code)
	}
	d.ID = id
	return nil
}

func (t *sqliteTx) UpdateIndicator(ctx context.Context, id int64, u model.IndicatorUpdate) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE indicators SET name = ?, description = ?, category_id = ?, unit = ?, target_value = ?,
		  updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		u.Name, u.Description, nullID(u.CategoryID), u.Unit, u.TargetValue, id)
	return eris.Wrapf(err, "sqlite: update indicator %d", id)
}

func (t *sqliteTx) ListIndicators(ctx context.Context, limit int) ([]model.IndicatorDefinition, error) {
	var out []model.IndicatorDefinition
	err := t.tx.SelectContext(ctx, &out, sqliteIndicatorSelect+` ORDER BY id LIMIT ?`, limit)
	return out, eris.Wrap(err, "sqlite: list indicators")
}

func (t *sqliteTx) HasIndicatorValue(ctx context.Context, subRegionID, indicatorID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM indicator_values WHERE sub_region_id = ? AND indicator_id = ?)`,
		subRegionID, indicatorID)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check value %d/%d", subRegionID, indicatorID)
	}
	return exists, nil
}

func (t *sqliteTx) InsertIndicatorValue(ctx context.Context, v *model.IndicatorValue) error {
	var refDate any
	if v.ReferenceDate != nil {
		refDate = v.ReferenceDate.Format(time.DateOnly)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO indicator_values (sub_region_id, indicator_id, value, year, reference_date, data_quality, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.SubRegionID, v.IndicatorID, v.Value, v.Year, refDate, v.DataQuality, v.Notes)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert value %d/%d", v.SubRegionID, v.IndicatorID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert value %d/%d", v.SubRegionID, v.IndicatorID)
	}
	v.ID = id
	return nil
}
