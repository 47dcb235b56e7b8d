package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoredIndicatorMarshalJSON(t *testing.T) {
	si := ScoredIndicator{
		Record:              Record{"CODRM": "1", "ANO": 2010, "ESPVIDA": 75.0, "FECTOT": nil},
		SmartIndex:          0.5,
		SustainabilityIndex: 0,
	}

	data, err := json.Marshal(si)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "1", got["CODRM"])
	assert.InDelta(t, 2010, got["ANO"], 0)
	assert.InDelta(t, 0.5, got["NOTA_INTELIGENTE"], 1e-9)
	assert.InDelta(t, 0, got["NOTA_SUSTENTAVEL"], 1e-9)
	v, ok := got["FECTOT"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestScoredIndicatorMarshalDoesNotMutateRecord(t *testing.T) {
	rec := Record{"CODRM": "1"}
	_, err := json.Marshal(ScoredIndicator{Record: rec})
	require.NoError(t, err)
	assert.Len(t, rec, 1)
}

func TestCountsStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		err    error
		want   SyncStatus
	}{
		{"clean", Counts{Processed: 3, Inserted: 3}, nil, SyncStatusSuccess},
		{"some failed", Counts{Processed: 3, Inserted: 2, Failed: 1}, nil, SyncStatusPartial},
		{"stage error", Counts{Processed: 3, Inserted: 3}, errors.New("boom"), SyncStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counts.Status(tt.err))
		})
	}
}

func TestCountsAddApply(t *testing.T) {
	var c Counts
	c.Add(Counts{Processed: 2, Inserted: 1, Updated: 1})
	c.Add(Counts{Processed: 3, Failed: 3})

	var run SyncRun
	c.Apply(&run)
	assert.Equal(t, 5, run.Processed)
	assert.Equal(t, 1, run.Inserted)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 3, run.Failed)
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	err := eris.Wrap(ErrFetchFailed, "refdata: GET /localidades/estados")
	assert.True(t, eris.Is(err, ErrFetchFailed))
	assert.False(t, eris.Is(err, ErrSourceMissing))
}

func TestUpdateStructs(t *testing.T) {
	r := Region{ID: 1, Code: "35", Name: "São Paulo", Abbreviation: "SP", Macroregion: "Sudeste"}
	assert.Equal(t, RegionUpdate{Name: "São Paulo", Abbreviation: "SP", Macroregion: "Sudeste"}, r.Update())

	s := SubRegion{Code: "3550308", Name: "São Paulo", RegionID: 1, Country: DefaultCountry}
	assert.Equal(t, SubRegionUpdate{Name: "São Paulo", RegionID: 1, Country: "Brasil"}, s.Update())

	target := 80.0
	d := IndicatorDefinition{Name: "Qualidade da Água", CategoryID: 2, Unit: "%", TargetValue: &target}
	u := d.Update()
	assert.Equal(t, "Qualidade da Água", u.Name)
	assert.Equal(t, int64(2), u.CategoryID)
	assert.Same(t, &target, u.TargetValue)
}
