package fetcher

// Table is a header row plus typed data rows. Cell values are float64,
// string, bool or nil for an empty cell. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]any
}

// Column returns the index of the named header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func padRow(cells []any, width int) []any {
	if len(cells) >= width {
		return cells[:width]
	}
	out := make([]any, width)
	copy(out, cells)
	return out
}
