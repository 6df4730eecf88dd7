package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, hdr <-chan []string, rowCh <-chan Row, errCh <-chan error) ([]string, []Row, error) {
	t.Helper()
	header := <-hdr
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	return header, rows, <-errCh
}

func TestStreamCSV_TabDelimitedWithHeader(t *testing.T) {
	input := "industry_code\tindustry_name\n1133--\tLogging\n211111\tCrude petroleum\n"
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
		HasHeader: true,
	})
	header, got, err := collect(t, hdr, rows, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{"industry_code", "industry_name"}, header)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"1133--", "Logging"}, got[0].Fields)
	assert.Equal(t, 2, got[0].Line)
	assert.Equal(t, 3, got[1].Line)
}

func TestStreamCSV_NoHeader(t *testing.T) {
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	header, got, err := collect(t, hdr, rows, errs)
	require.NoError(t, err)
	assert.Nil(t, header)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, got[0].Fields)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader(" code \t name \n 01 \t Food  \n"), CSVOptions{
		Delimiter: '\t',
		HasHeader: true,
		TrimSpace: true,
	})
	header, got, err := collect(t, hdr, rows, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "name"}, header)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"01", "Food"}, got[0].Fields)
}

func TestStreamCSV_VariableFieldCounts(t *testing.T) {
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader("a,b,c\n1\n2,3\n"), CSVOptions{})
	_, got, err := collect(t, hdr, rows, errs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[1].Fields, 1)
}

func TestStreamCSV_Empty(t *testing.T) {
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{HasHeader: true})
	header, got, err := collect(t, hdr, rows, errs)
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Empty(t, got)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hdr, rows, errs := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	_, got, err := collect(t, hdr, rows, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
	assert.Empty(t, got)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	hdr, rows, errs := StreamCSV(context.Background(), strings.NewReader("a,\"b\nc,d\n"), CSVOptions{})
	_, _, err := collect(t, hdr, rows, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read line")
}

func TestIndexAndField(t *testing.T) {
	idx := Index([]string{"code", " name "})
	assert.Equal(t, 0, idx["code"])
	assert.Equal(t, 1, idx["name"])

	assert.Equal(t, "x", Field([]string{"x"}, 0))
	assert.Equal(t, "", Field([]string{"x"}, 3))
	assert.Equal(t, "", Field([]string{"x"}, -1))
}
