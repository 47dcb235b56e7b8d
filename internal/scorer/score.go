package scorer

import (
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/model"
)

// Score computes the weighted average of the normalized metrics available in
// rec. Metrics that are absent, non-numeric or have no observed range are
// left out and the remaining weights are renormalized. The result is 0 when
// nothing contributed. An error is returned only for an invalid index.
func (ix Index) Score(rec model.Record, ranges RangeTable) (float64, error) {
	if err := ix.Validate(); err != nil {
		return 0, err
	}

	var score, seen float64
	for _, w := range ix.Weights {
		raw, ok := rec[w.Metric]
		if !ok || raw == nil {
			continue
		}
		r, ok := ranges.Lookup(w.Metric)
		if !ok {
			continue
		}
		v, ok := Numeric(raw)
		if !ok {
			zap.L().Warn("scorer: skipping non-numeric metric",
				zap.String("index", ix.Name),
				zap.String("metric", w.Metric),
				zap.Any("value", raw),
			)
			continue
		}
		score += Normalize(v, r.Min, r.Max) * w.Weight
		seen += w.Weight
	}

	if seen == 0 {
		return 0, nil
	}
	return score / seen, nil
}
