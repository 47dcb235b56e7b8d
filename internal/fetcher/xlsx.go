package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet of an XLSX file. The first row is the header.
// Numeric cells are returned as float64 and empty cells as nil.
func ReadXLSX(path string, opts XLSXOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	t := &Table{}
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if i == 0 {
			t.Header = headerCells(row)
			continue
		}
		cells := make([]any, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cellValue(cell)
		}
		if allNil(cells) {
			continue
		}
		t.Rows = append(t.Rows, padRow(cells, len(t.Header)))
	}
	if t.Header == nil {
		return nil, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}

	return t, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func headerCells(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		out[j] = strings.TrimSpace(cell.String())
	}
	return out
}

func cellValue(cell *xlsx.Cell) any {
	if cell == nil || cell.Value == "" {
		return nil
	}
	switch cell.Type() {
	case xlsx.CellTypeString, xlsx.CellTypeInline, xlsx.CellTypeStringFormula:
		return cell.Value
	case xlsx.CellTypeBool:
		return cell.Bool()
	}
	if v, err := cell.Float(); err == nil {
		return v
	}
	return cell.Value
}

func allNil(cells []any) bool {
	for _, c := range cells {
		if c != nil {
			return false
		}
	}
	return true
}
