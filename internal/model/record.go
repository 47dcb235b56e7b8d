package model

import (
	"encoding/json"
	"maps"
)

// Index output column names.
const (
	SmartIndexColumn          = "NOTA_INTELIGENTE"
	SustainabilityIndexColumn = "NOTA_SUSTENTAVEL"
)

// Record is one spreadsheet row keyed by header. Values are string, float64,
// int or nil.
type Record map[string]any

// ScoredIndicator is a Record with both composite indices attached.
type ScoredIndicator struct {
	Record              Record
	SmartIndex          float64
	SustainabilityIndex float64
}

// MarshalJSON flattens the record columns and the two indices into one object.
func (s ScoredIndicator) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Record)+2)
	maps.Copy(out, s.Record)
	out[SmartIndexColumn] = s.SmartIndex
	out[SustainabilityIndexColumn] = s.SustainabilityIndex
	return json.Marshal(out)
}

// ColumnStats summarizes the numeric values of one column.
type ColumnStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}
