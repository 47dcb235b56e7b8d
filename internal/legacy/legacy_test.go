package legacy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/store"
)

const legacyJSON = `{
  "indicators": [
    {"id": 1, "name": "Qualidade da Água", "category": "Ambiental", "target": 95, "description": "Índice de qualidade"},
    {"id": 2, "name": "Cobertura Vacinal", "category": "Saúde", "target": 90, "description": "", "unit": "% pop"},
    {"id": 3, "name": "Transparência Pública", "description": "sem categoria"},
    {"id": 4, "name": "  ", "category": "Social"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// rejectingStore fails InsertIndicator for one indicator code.
type rejectingStore struct {
	store.Store
	code string
}

func (r *rejectingStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &rejectingTx{Tx: tx, code: r.code}, nil
}

type rejectingTx struct {
	store.Tx
	code string
}

func (t *rejectingTx) InsertIndicator(ctx context.Context, d *model.IndicatorDefinition) error {
	if d.Code == t.code {
		return errors.New("constraint violated")
	}
	return t.Tx.InsertIndicator(ctx, d)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func TestNaturalCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Qualidade da Água", "URB_QUALIDADE_DA_AGUA"},
		{"Transparência Pública", "URB_TRANSPARENCIA_PUBLICA"},
		{"  Taxa de  emprego (%) ", "URB_TAXA_DE_EMPREGO"},
		{"CO2 per capita", "URB_CO2_PER_CAPITA"},
		{"Educação", "URB_EDUCACAO"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NaturalCode(tt.in), tt.in)
	}
}

func TestCategoryColor(t *testing.T) {
	assert.Equal(t, "#10b981", CategoryColor("Ambiental"))
	assert.Equal(t, "#14b8a6", CategoryColor("Educação"))
	assert.Equal(t, "#6b7280", CategoryColor("Outros"))
}

func TestRepository_LoadJSON(t *testing.T) {
	doc, err := NewRepository(writeFile(t, "db.json", legacyJSON)).Load()
	require.NoError(t, err)
	require.Len(t, doc.Indicators, 4)
	assert.Equal(t, "Qualidade da Água", doc.Indicators[0].Name)
	require.NotNil(t, doc.Indicators[0].Target)
	assert.InDelta(t, 95.0, *doc.Indicators[0].Target, 1e-9)
	assert.Nil(t, doc.Indicators[2].Target)
	assert.Equal(t, "% pop", doc.Indicators[1].Unit)
}

func TestRepository_LoadYAML(t *testing.T) {
	yml := `
indicators:
  - name: Qualidade do Ar
    category: Ambiental
    target: 80.5
`
	doc, err := NewRepository(writeFile(t, "db.yml", yml)).Load()
	require.NoError(t, err)
	require.Len(t, doc.Indicators, 1)
	assert.Equal(t, "Ambiental", doc.Indicators[0].Category)
	assert.InDelta(t, 80.5, *doc.Indicators[0].Target, 1e-9)
}

func TestRepository_Errors(t *testing.T) {
	_, err := NewRepository(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrSourceMissing))

	_, err = NewRepository(writeFile(t, "bad.json", `{"indicators": [`)).Load()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrSourceMalformed))

	_, err = NewRepository(writeFile(t, "bad.yaml", "indicators: [unclosed")).Load()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrSourceMalformed))
}

func TestMigrateIndicators(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := NewMigrator(st, NewRepository(writeFile(t, "db.json", legacyJSON)))

	stats, err := m.MigrateIndicators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 1, stats.Failed, "blank name")
	assert.Equal(t, 3, stats.CategoriesCreated)
	assert.Equal(t, model.SyncStatusPartial, stats.Run.Status)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	water, err := tx.IndicatorByCode(ctx, "URB_QUALIDADE_DA_AGUA")
	require.NoError(t, err)
	require.NotNil(t, water)
	assert.Equal(t, "Qualidade da Água", water.Name)
	assert.Equal(t, "%", water.Unit)
	assert.True(t, water.HigherIsBetter)
	assert.Equal(t, "Dados históricos", water.DataSource)
	require.NotNil(t, water.TargetValue)
	assert.InDelta(t, 95.0, *water.TargetValue, 1e-9)

	cat, err := tx.CategoryByName(ctx, "Ambiental")
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "#10b981", cat.Color)
	assert.Equal(t, "Indicadores da categoria Ambiental", cat.Description)
	assert.Equal(t, cat.ID, water.CategoryID)

	vac, err := tx.IndicatorByCode(ctx, "URB_COBERTURA_VACINAL")
	require.NoError(t, err)
	assert.Equal(t, "% pop", vac.Unit)

	other, err := tx.CategoryByName(ctx, "Outros")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "#6b7280", other.Color)
	require.NoError(t, tx.Rollback(ctx))

	runs, err := st.ListSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "legacy", runs[0].Source)
	assert.Equal(t, 3, runs[0].Inserted)

	// Re-running updates in place.
	stats, err = m.MigrateIndicators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, 0, stats.CategoriesCreated)
}

func TestMigrateIndicators_WriteFailureRollsBackEntry(t *testing.T) {
	base := newTestStore(t)
	ctx := context.Background()
	st := &rejectingStore{Store: base, code: "URB_QUALIDADE_DA_AGUA"}
	m := NewMigrator(st, NewRepository(writeFile(t, "db.json", legacyJSON)))

	stats, err := m.MigrateIndicators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, stats.CategoriesCreated, "rolled back category is not counted")
	assert.Equal(t, model.SyncStatusPartial, stats.Run.Status)

	tx, err := base.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	water, err := tx.IndicatorByCode(ctx, "URB_QUALIDADE_DA_AGUA")
	require.NoError(t, err)
	assert.Nil(t, water)

	cat, err := tx.CategoryByName(ctx, "Ambiental")
	require.NoError(t, err)
	assert.Nil(t, cat, "category inserted in the failed entry's transaction is rolled back")

	vac, err := tx.IndicatorByCode(ctx, "URB_COBERTURA_VACINAL")
	require.NoError(t, err)
	assert.NotNil(t, vac)
}

func TestMigrateIndicators_MissingSource(t *testing.T) {
	st := newTestStore(t)
	m := NewMigrator(st, NewRepository(filepath.Join(t.TempDir(), "db.json")))

	stats, err := m.MigrateIndicators(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrSourceMissing))
	assert.Equal(t, model.SyncStatusError, stats.Run.Status)

	runs, err := st.ListSyncRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.SyncStatusError, runs[0].Status)
	assert.NotEmpty(t, runs[0].ErrorMessage)
}

func seedSubRegions(t *testing.T, st store.Store, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	r := &model.Region{Code: "35", Name: "São Paulo"}
	require.NoError(t, tx.InsertRegion(ctx, r))
	var ids []int64
	for i := range n {
		s := &model.SubRegion{Code: string(rune('A' + i)), Name: "m", RegionID: r.ID, Country: "Brasil"}
		require.NoError(t, tx.InsertSubRegion(ctx, s))
		ids = append(ids, s.ID)
	}
	require.NoError(t, tx.Commit(ctx))
	return ids
}

func TestSampleValue(t *testing.T) {
	assert.InDelta(t, 72.0, SampleValue(1), 1e-9)
	assert.InDelta(t, 70.0, SampleValue(15), 1e-9)
	assert.InDelta(t, 98.0, SampleValue(29), 1e-9)
}

func TestSynthesizeSamples(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ids := seedSubRegions(t, st, 6)
	m := NewMigrator(st, NewRepository(writeFile(t, "db.json", legacyJSON)))
	_, err := m.MigrateIndicators(ctx)
	require.NoError(t, err)

	n, err := m.SynthesizeSamples(ctx, SampleOptions{Regions: 5, Indicators: 2, Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	defs, err := tx.ListIndicators(ctx, 3)
	require.NoError(t, err)
	has, err := tx.HasIndicatorValue(ctx, ids[0], defs[0].ID)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = tx.HasIndicatorValue(ctx, ids[5], defs[0].ID)
	require.NoError(t, err)
	assert.False(t, has, "sixth sub-region is outside the sample")
	has, err = tx.HasIndicatorValue(ctx, ids[0], defs[2].ID)
	require.NoError(t, err)
	assert.False(t, has, "third indicator is outside the sample")
	require.NoError(t, tx.Rollback(ctx))

	// Existing pairs are skipped.
	n, err = m.SynthesizeSamples(ctx, SampleOptions{Regions: 5, Indicators: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSynthesizeSamples_NothingToDo(t *testing.T) {
	st := newTestStore(t)
	m := NewMigrator(st, NewRepository("unused.json"))

	n, err := m.SynthesizeSamples(context.Background(), SampleOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)

	seedSubRegions(t, st, 2)
	n, err = m.SynthesizeSamples(context.Background(), SampleOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
