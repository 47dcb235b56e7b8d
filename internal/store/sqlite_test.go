package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbix/urbix-etl/internal/config"
	"github.com/urbix/urbix-etl/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func beginTx(t *testing.T, st Store) Tx {
	t.Helper()
	tx, err := st.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback(context.Background()) }) //nolint:errcheck
	return tx
}

func ptr[T any](v T) *T { return &v }

// --- Regions ---

func TestSQLite_Region_InsertAndLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	missing, err := tx.RegionByCode(ctx, "35")
	require.NoError(t, err)
	assert.Nil(t, missing)

	r := &model.Region{Code: "35", Name: "São Paulo", Abbreviation: "SP", Macroregion: "Sudeste"}
	require.NoError(t, tx.InsertRegion(ctx, r))
	assert.NotZero(t, r.ID)

	got, err := tx.RegionByCode(ctx, "35")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *r, *got)
}

func TestSQLite_Region_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	r := &model.Region{Code: "33", Name: "Rio", Abbreviation: "RJ", Macroregion: "Sudeste"}
	require.NoError(t, tx.InsertRegion(ctx, r))

	require.NoError(t, tx.UpdateRegion(ctx, r.ID, model.RegionUpdate{
		Name: "Rio de Janeiro", Abbreviation: "RJ", Macroregion: "Sudeste",
	}))

	got, err := tx.RegionByCode(ctx, "33")
	require.NoError(t, err)
	assert.Equal(t, "Rio de Janeiro", got.Name)
	assert.Equal(t, r.ID, got.ID)
}

func TestSQLite_Region_DuplicateCode(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	require.NoError(t, tx.InsertRegion(ctx, &model.Region{Code: "35", Name: "SP"}))
	err := tx.InsertRegion(ctx, &model.Region{Code: "35", Name: "SP again"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert region 35")
}

// --- Sub-regions ---

func TestSQLite_SubRegion_InsertUpdateList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	sp := &model.Region{Code: "35", Name: "São Paulo"}
	rj := &model.Region{Code: "33", Name: "Rio de Janeiro"}
	require.NoError(t, tx.InsertRegion(ctx, sp))
	require.NoError(t, tx.InsertRegion(ctx, rj))

	s := &model.SubRegion{Code: "3550308", Name: "São Paulo", RegionID: sp.ID, Country: model.DefaultCountry}
	require.NoError(t, tx.InsertSubRegion(ctx, s))
	require.NoError(t, tx.InsertSubRegion(ctx, &model.SubRegion{
		Code: "3304557", Name: "Rio de Janeiro", RegionID: rj.ID, Country: model.DefaultCountry,
	}))

	require.NoError(t, tx.UpdateSubRegion(ctx, s.ID, model.SubRegionUpdate{
		Name: "São Paulo (capital)", RegionID: sp.ID, Country: model.DefaultCountry,
	}))

	got, err := tx.SubRegionByCode(ctx, "3550308")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "São Paulo (capital)", got.Name)
	assert.Equal(t, sp.ID, got.RegionID)
	assert.Equal(t, "Brasil", got.Country)

	list, err := tx.ListSubRegions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "3550308", list[0].Code)

	list, err = tx.ListSubRegions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSQLite_SubRegion_UnknownRegionRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	err := tx.InsertSubRegion(ctx, &model.SubRegion{Code: "1", Name: "x", RegionID: 999, Country: "Brasil"})
	assert.Error(t, err)
}

func TestSQLite_RegionDelete_CascadesToSubRegions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	r := &model.Region{Code: "35", Name: "SP"}
	require.NoError(t, tx.InsertRegion(ctx, r))
	require.NoError(t, tx.InsertSubRegion(ctx, &model.SubRegion{Code: "3550308", Name: "SP", RegionID: r.ID, Country: "Brasil"}))

	_, err := tx.(*sqliteTx).tx.ExecContext(ctx, `DELETE FROM regions WHERE id = ?`, r.ID)
	require.NoError(t, err)

	got, err := tx.SubRegionByCode(ctx, "3550308")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Indicator catalog ---

func TestSQLite_Indicator_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	c := &model.Category{Name: "Saúde", Description: "Saúde pública", Color: "#ef4444"}
	require.NoError(t, tx.InsertCategory(ctx, c))
	gotCat, err := tx.CategoryByName(ctx, "Saúde")
	require.NoError(t, err)
	require.NotNil(t, gotCat)
	assert.Equal(t, *c, *gotCat)

	withTarget := &model.IndicatorDefinition{
		Code: "ESPVIDA", Name: "Esperança de vida", CategoryID: c.ID,
		Unit: "anos", TargetValue: ptr(80.0), HigherIsBetter: true, DataSource: "legacy",
	}
	require.NoError(t, tx.InsertIndicator(ctx, withTarget))

	bare := &model.IndicatorDefinition{Code: "RAZDEP", Name: "Razão de dependência"}
	require.NoError(t, tx.InsertIndicator(ctx, bare))

	got, err := tx.IndicatorByCode(ctx, "ESPVIDA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.CategoryID)
	require.NotNil(t, got.TargetValue)
	assert.InDelta(t, 80.0, *got.TargetValue, 1e-9)
	assert.True(t, got.HigherIsBetter)

	got, err = tx.IndicatorByCode(ctx, "RAZDEP")
	require.NoError(t, err)
	assert.Zero(t, got.CategoryID)
	assert.Nil(t, got.TargetValue)
	assert.False(t, got.HigherIsBetter)

	require.NoError(t, tx.UpdateIndicator(ctx, bare.ID, model.IndicatorUpdate{
		Name: "Razão de dependência total", CategoryID: c.ID, TargetValue: ptr(45.0),
	}))
	got, err = tx.IndicatorByCode(ctx, "RAZDEP")
	require.NoError(t, err)
	assert.Equal(t, "Razão de dependência total", got.Name)
	assert.Equal(t, c.ID, got.CategoryID)
	require.NotNil(t, got.TargetValue)

	list, err := tx.ListIndicators(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ESPVIDA", list[0].Code)
}

func TestSQLite_IndicatorValue_Exists(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	tx := beginTx(t, st)

	r := &model.Region{Code: "35", Name: "SP"}
	require.NoError(t, tx.InsertRegion(ctx, r))
	s := &model.SubRegion{Code: "3550308", Name: "SP", RegionID: r.ID, Country: "Brasil"}
	require.NoError(t, tx.InsertSubRegion(ctx, s))
	d := &model.IndicatorDefinition{Code: "IDHM", Name: "IDHM"}
	require.NoError(t, tx.InsertIndicator(ctx, d))

	has, err := tx.HasIndicatorValue(ctx, s.ID, d.ID)
	require.NoError(t, err)
	assert.False(t, has)

	ref := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	v := &model.IndicatorValue{
		SubRegionID: s.ID, IndicatorID: d.ID, Value: 0.8, Year: 2024,
		ReferenceDate: &ref, DataQuality: model.QualityGood,
	}
	require.NoError(t, tx.InsertIndicatorValue(ctx, v))
	assert.NotZero(t, v.ID)

	has, err = tx.HasIndicatorValue(ctx, s.ID, d.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

// --- Transactions ---

func TestSQLite_Rollback_DiscardsWrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertRegion(ctx, &model.Region{Code: "35", Name: "SP"}))
	require.NoError(t, tx.Rollback(ctx))

	tx = beginTx(t, st)
	got, err := tx.RegionByCode(ctx, "35")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Commit_ThenRollbackIsNoop(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertRegion(ctx, &model.Region{Code: "35", Name: "SP"}))
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))

	tx = beginTx(t, st)
	got, err := tx.RegionByCode(ctx, "35")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// --- Sync runs ---

func TestSQLite_SyncRuns_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, status := range []model.SyncStatus{model.SyncStatusSuccess, model.SyncStatusPartial, model.SyncStatusError} {
		run := &model.SyncRun{
			ID:          string(rune('a' + i)),
			Source:      "IBGE",
			Endpoint:    "/localidades",
			Status:      status,
			Processed:   10,
			Inserted:    i,
			Failed:      i,
			Elapsed:     1500 * time.Millisecond,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			CompletedAt: base.Add(time.Duration(i)*time.Hour + 1500*time.Millisecond),
		}
		require.NoError(t, st.RecordSyncRun(ctx, run))
	}

	runs, err := st.ListSyncRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, model.SyncStatusError, runs[0].Status)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Elapsed)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Hour)))
}

func TestSQLite_SyncRuns_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	run := &model.SyncRun{ID: "x", Source: "IBGE", Status: model.SyncStatusSuccess, StartedAt: now, CompletedAt: now}

	require.NoError(t, st.RecordSyncRun(ctx, run))
	err := st.RecordSyncRun(ctx, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record sync run x")
}

// --- Open ---

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.NoError(t, st.EnsureSchema(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
