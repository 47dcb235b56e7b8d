// Package scorer normalizes metrics against observed ranges and combines them
// into weighted composite indices.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/urbix/urbix-etl/internal/config"
	"github.com/urbix/urbix-etl/internal/model"
)

// Weight is one metric's contribution to an Index.
type Weight struct {
	Metric string
	Weight float64
}

// Index is a named, ordered weight table.
type Index struct {
	Name    string
	Weights []Weight
}

// DefaultSmartIndex returns the resilience ("smart city") index.
func DefaultSmartIndex() Index {
	return Index{
		Name: model.SmartIndexColumn,
		Weights: []Weight{
			{Metric: "ESPVIDA", Weight: 0.2},
			{Metric: "IDHM", Weight: 0.3},
			{Metric: "FECTOT", Weight: 0.1},
		},
	}
}

// DefaultSustainabilityIndex returns the sustainability index.
func DefaultSustainabilityIndex() Index {
	return Index{
		Name: model.SustainabilityIndexColumn,
		Weights: []Weight{
			{Metric: "IDHM_R", Weight: 0.4},
			{Metric: "IDHM_L", Weight: 0.3},
			{Metric: "RAZDEP", Weight: 0.3},
		},
	}
}

// IndicesFromConfig returns the smart and sustainability indices, replacing a
// default weight table when the config provides one.
func IndicesFromConfig(c config.ScoringConfig) (smart, sustainable Index) {
	smart = DefaultSmartIndex()
	sustainable = DefaultSustainabilityIndex()
	if len(c.Smart) > 0 {
		smart.Weights = weightsFromConfig(c.Smart)
	}
	if len(c.Sustainable) > 0 {
		sustainable.Weights = weightsFromConfig(c.Sustainable)
	}
	return smart, sustainable
}

func weightsFromConfig(ws []config.WeightConfig) []Weight {
	out := make([]Weight, 0, len(ws))
	for _, w := range ws {
		out = append(out, Weight{Metric: w.Metric, Weight: w.Weight})
	}
	return out
}

// Metrics returns the metric names of the index in order.
func (ix Index) Metrics() []string {
	out := make([]string, 0, len(ix.Weights))
	for _, w := range ix.Weights {
		out = append(out, w.Metric)
	}
	return out
}

// Validate checks that the index is usable.
func (ix Index) Validate() error {
	var errs []string

	if len(ix.Weights) == 0 {
		errs = append(errs, "no weights")
	}
	seen := make(map[string]bool, len(ix.Weights))
	for i, w := range ix.Weights {
		if w.Metric == "" {
			errs = append(errs, fmt.Sprintf("weight %d has no metric", i))
			continue
		}
		if seen[w.Metric] {
			errs = append(errs, fmt.Sprintf("metric %s listed twice", w.Metric))
		}
		seen[w.Metric] = true
		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) || w.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("metric %s weight must be > 0", w.Metric))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid index %s: %s", ix.Name, strings.Join(errs, "; "))
	}
	return nil
}

// TrackedMetrics returns the union of the indices' metrics, in first-seen
// order.
func TrackedMetrics(indices ...Index) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ix := range indices {
		for _, m := range ix.Metrics() {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
