// Package sheet extracts indicator records from the municipal metrics
// spreadsheet and scores them.
package sheet

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/config"
	"github.com/urbix/urbix-etl/internal/fetcher"
	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/scorer"
)

// Columns names the special spreadsheet columns.
type Columns struct {
	RegionCode string
	RegionName string
	Year       string
	Numeric    []string
}

// ColumnsFromConfig builds Columns from the spreadsheet config.
func ColumnsFromConfig(c config.SpreadsheetConfig) Columns {
	return Columns{
		RegionCode: c.RegionCodeColumn,
		RegionName: c.RegionNameColumn,
		Year:       c.YearColumn,
		Numeric:    c.NumericColumns,
	}
}

// Extraction is the output of one Extract call.
type Extraction struct {
	Indicators []model.ScoredIndicator
	Ranges     scorer.RangeTable
	// Dropped counts rows that could not be scored.
	Dropped int
}

// Extractor reads a spreadsheet in two passes: the first observes metric
// ranges, the second coerces and scores every row.
type Extractor struct {
	cols        Columns
	smart       scorer.Index
	sustainable scorer.Index
	sheetName   string
	numeric     map[string]bool
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSheet selects a sheet by name instead of the first one.
func WithSheet(name string) Option {
	return func(e *Extractor) { e.sheetName = name }
}

// WithMetrics records extraction counters.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// New creates an Extractor.
func New(cols Columns, smart, sustainable scorer.Index, opts ...Option) *Extractor {
	e := &Extractor{
		cols:        cols,
		smart:       smart,
		sustainable: sustainable,
		numeric:     make(map[string]bool, len(cols.Numeric)),
		log:         zap.L().With(zap.String("component", "sheet")),
	}
	for _, c := range cols.Numeric {
		e.numeric[c] = true
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Open reads the table at path. XLSX and CSV are supported, chosen by
// extension. A missing file is reported as model.ErrSourceMissing and any
// other read failure as model.ErrProcessingFailed.
func Open(ctx context.Context, path, sheetName string) (*fetcher.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(model.ErrSourceMissing, "sheet: %s not found", filepath.Base(path))
		}
		return nil, eris.Wrapf(model.ErrProcessingFailed, "sheet: stat %s: %v", path, err)
	}

	var (
		tbl *fetcher.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, oerr := os.Open(path)
		if oerr != nil {
			return nil, eris.Wrapf(model.ErrProcessingFailed, "sheet: open %s: %v", path, oerr)
		}
		defer f.Close() //nolint:errcheck
		tbl, err = fetcher.ReadCSV(ctx, f, 0)
	default:
		tbl, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheetName})
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrProcessingFailed, "sheet: read %s: %v", path, err)
	}
	return tbl, nil
}

// Extract reads path and returns the scored indicators in input order.
func (e *Extractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	for _, ix := range []scorer.Index{e.smart, e.sustainable} {
		if err := ix.Validate(); err != nil {
			return nil, err
		}
	}

	tbl, err := Open(ctx, path, e.sheetName)
	if err != nil {
		return nil, err
	}

	ranges := e.observeRanges(tbl)

	out := &Extraction{Ranges: ranges}
	for i, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sheet: extract cancelled")
		}

		rec := e.coerce(tbl.Header, row, i+2)

		si, err := e.score(rec, ranges)
		if err != nil {
			e.log.Error("scoring row", zap.Int("row", i+2), zap.Error(err))
			out.Dropped++
			continue
		}
		out.Indicators = append(out.Indicators, si)
	}

	e.metrics.ObserveExtraction(len(out.Indicators), out.Dropped)
	e.log.Info("spreadsheet extracted",
		zap.String("path", path),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("scored", len(out.Indicators)),
		zap.Int("dropped", out.Dropped),
	)
	return out, nil
}

// observeRanges is the first pass.
func (e *Extractor) observeRanges(tbl *fetcher.Table) scorer.RangeTable {
	ranges := scorer.NewRangeTable(scorer.TrackedMetrics(e.smart, e.sustainable))
	for _, row := range tbl.Rows {
		for j, h := range tbl.Header {
			if _, tracked := ranges[h]; !tracked || row[j] == nil {
				continue
			}
			v, ok := scorer.Numeric(row[j])
			if !ok {
				e.log.Warn("non-numeric metric value",
					zap.String("column", h),
					zap.Any("value", row[j]),
				)
				continue
			}
			ranges.Observe(h, v)
		}
	}
	return ranges
}

// coerce is the per-row part of the second pass. Cells that do not fit
// their column type become null; the row itself is always kept.
func (e *Extractor) coerce(header []string, row []any, line int) model.Record {
	rec := make(model.Record, len(header))
	for j, h := range header {
		if h == "" {
			continue
		}
		v := row[j]
		if v == nil {
			rec[h] = nil
			continue
		}
		switch {
		case h == e.cols.RegionCode || h == e.cols.RegionName:
			rec[h] = text(v)
		case h == e.cols.Year:
			y, ok := year(v)
			if !ok {
				e.log.Warn("invalid year set to null",
					zap.Int("row", line),
					zap.String("column", h),
					zap.Any("value", v),
				)
				rec[h] = nil
				continue
			}
			rec[h] = y
		case e.numeric[h]:
			f, ok := scorer.Numeric(v)
			if !ok {
				e.log.Warn("non-numeric value set to null", zap.String("column", h), zap.Any("value", v))
				rec[h] = nil
				continue
			}
			rec[h] = f
		default:
			rec[h] = v
		}
	}
	return rec
}

func (e *Extractor) score(rec model.Record, ranges scorer.RangeTable) (model.ScoredIndicator, error) {
	smart, err := e.smart.Score(rec, ranges)
	if err != nil {
		return model.ScoredIndicator{}, err
	}
	sust, err := e.sustainable.Score(rec, ranges)
	if err != nil {
		return model.ScoredIndicator{}, err
	}
	return model.ScoredIndicator{Record: rec, SmartIndex: smart, SustainabilityIndex: sust}, nil
}

// text renders a cell as text. Integral numbers lose their decimal part so a
// code stored as 1.0 reads "1".
func text(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// year reads a year cell. Numeric cells are truncated toward zero; text
// must be a plain integer.
func year(v any) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	f, ok := scorer.Numeric(v)
	if !ok || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
