package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV_Header(t *testing.T) {
	input := "name,age\nAlice,30\nBob,25\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"name", "age"}, <-headerCh)
	assert.Equal(t, [][]string{{"Alice", "30"}, {"Bob", "25"}}, rows)
}

func TestStreamCSV_Semicolon(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a;b\nc;d\n"), CSVOptions{Delimiter: ';'})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, rows)
}

func TestReadCSV(t *testing.T) {
	input := "CODRM, NOME_RM ,ANO,ESPVIDA\n1,Belém,2010,72.5\n2,Manaus,2010,\n\n3,Recife\n"

	tbl, err := ReadCSV(context.Background(), strings.NewReader(input), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"CODRM", "NOME_RM", "ANO", "ESPVIDA"}, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []any{"1", "Belém", "2010", "72.5"}, tbl.Rows[0])
	assert.Equal(t, []any{"2", "Manaus", "2010", nil}, tbl.Rows[1])
	assert.Equal(t, []any{"3", "Recife", nil, nil}, tbl.Rows[2], "short rows are padded")
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl, err := ReadCSV(context.Background(), strings.NewReader("A,B\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
}
