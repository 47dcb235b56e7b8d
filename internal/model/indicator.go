package model

import "time"

// Category groups indicator definitions.
type Category struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Color       string `json:"color" db:"color"`
}

// IndicatorDefinition describes a tracked indicator.
type IndicatorDefinition struct {
	ID             int64    `json:"id" db:"id"`
	Code           string   `json:"code" db:"code"`
	Name           string   `json:"name" db:"name"`
	Description    string   `json:"description" db:"description"`
	CategoryID     int64    `json:"category_id" db:"category_id"`
	Unit           string   `json:"unit" db:"unit"`
	TargetValue    *float64 `json:"target_value,omitempty" db:"target_value"`
	HigherIsBetter bool     `json:"is_higher_better" db:"is_higher_better"`
	DataSource     string   `json:"data_source" db:"data_source"`
}

// IndicatorUpdate lists the mutable fields of an IndicatorDefinition.
type IndicatorUpdate struct {
	Name        string
	Description string
	CategoryID  int64
	Unit        string
	TargetValue *float64
}

// Update returns the mutable fields of d.
func (d IndicatorDefinition) Update() IndicatorUpdate {
	return IndicatorUpdate{
		Name:        d.Name,
		Description: d.Description,
		CategoryID:  d.CategoryID,
		Unit:        d.Unit,
		TargetValue: d.TargetValue,
	}
}

// Data quality grades for IndicatorValue.
const (
	QualityGood = "good"
	QualityFair = "fair"
	QualityPoor = "poor"
)

// IndicatorValue is one measured value of an indicator for a sub-region.
type IndicatorValue struct {
	ID            int64      `json:"id" db:"id"`
	SubRegionID   int64      `json:"sub_region_id" db:"sub_region_id"`
	IndicatorID   int64      `json:"indicator_id" db:"indicator_id"`
	Value         float64    `json:"value" db:"value"`
	Year          int        `json:"year" db:"year"`
	ReferenceDate *time.Time `json:"reference_date,omitempty" db:"reference_date"`
	DataQuality   string     `json:"data_quality" db:"data_quality"`
	Notes         string     `json:"notes" db:"notes"`
}
