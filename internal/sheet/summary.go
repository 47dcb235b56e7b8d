package sheet

import (
	"context"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/scorer"
)

// Summarize returns min, max, mean and count over the numeric values of
// every column. Columns without any numeric value are omitted.
func Summarize(ctx context.Context, path, sheetName string) (map[string]model.ColumnStats, error) {
	tbl, err := Open(ctx, path, sheetName)
	if err != nil {
		return nil, err
	}

	type acc struct {
		r     scorer.MetricRange
		sum   float64
		count int
	}
	accs := make(map[string]*acc, len(tbl.Header))
	for _, row := range tbl.Rows {
		for j, h := range tbl.Header {
			if h == "" {
				continue
			}
			v, ok := scorer.Numeric(row[j])
			if !ok {
				continue
			}
			a := accs[h]
			if a == nil {
				a = &acc{r: scorer.NewMetricRange()}
				accs[h] = a
			}
			a.r.Observe(v)
			a.sum += v
			a.count++
		}
	}

	out := make(map[string]model.ColumnStats, len(accs))
	for h, a := range accs {
		out[h] = model.ColumnStats{
			Min:   a.r.Min,
			Max:   a.r.Max,
			Mean:  a.sum / float64(a.count),
			Count: a.count,
		}
	}
	return out, nil
}
