package scorer

import "math"

// Normalize min-max scales value against [min, max]. A degenerate range
// (max == min) yields 0. Ranges observed from the same table always contain
// value; the clamp to [0,1] only guards callers passing a foreign range.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	n := (value - min) / (max - min)
	return math.Max(0, math.Min(1, n))
}

// MetricRange is the observed [Min, Max] of one metric.
type MetricRange struct {
	Min float64
	Max float64
}

// NewMetricRange returns an empty range.
func NewMetricRange() MetricRange {
	return MetricRange{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Observe widens the range to include v.
func (r *MetricRange) Observe(v float64) {
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// Observed reports whether at least one sample was seen.
func (r MetricRange) Observed() bool {
	return r.Min <= r.Max
}

// RangeTable maps metric names to their observed ranges.
type RangeTable map[string]MetricRange

// NewRangeTable returns a table with an empty range for every metric.
func NewRangeTable(metrics []string) RangeTable {
	t := make(RangeTable, len(metrics))
	for _, m := range metrics {
		t[m] = NewMetricRange()
	}
	return t
}

// Observe widens the range of metric. Untracked metrics are ignored.
func (t RangeTable) Observe(metric string, v float64) {
	r, ok := t[metric]
	if !ok {
		return
	}
	r.Observe(v)
	t[metric] = r
}

// Lookup returns the range of metric if it has been observed.
func (t RangeTable) Lookup(metric string) (MetricRange, bool) {
	r, ok := t[metric]
	if !ok || !r.Observed() {
		return MetricRange{}, false
	}
	return r, true
}
