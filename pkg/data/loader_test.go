package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/pkg/errs"
)

const salesCSV = `Date,Sales,Profit,Region
2023-01-01,100,10,North
2023-01-02,,12,South
2023-01-03,120,NA,North
`

func TestLoadReader(t *testing.T) {
	tbl, err := LoadReader(strings.NewReader(salesCSV), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Sales", "Profit", "Region"}, tbl.Names())
	assert.Equal(t, 3, tbl.NumRows())

	kind, ok := tbl.Kind("Sales")
	require.True(t, ok)
	assert.Equal(t, Numeric, kind)
	kind, _ = tbl.Kind("Region")
	assert.Equal(t, Categorical, kind)
	kind, _ = tbl.Kind("Date")
	assert.Equal(t, Categorical, kind)

	v, ok := tbl.Float(0, tbl.Index("Sales"))
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)
	_, ok = tbl.Float(1, tbl.Index("Sales"))
	assert.False(t, ok, "empty cell is missing")
	assert.Equal(t, 2, tbl.MissingCount())
}

func TestLoadReaderSemicolonAndBOM(t *testing.T) {
	src := "\ufeffa;b\n1;2\n"
	tbl, err := LoadReader(strings.NewReader(src), &LoadOptions{Delimiter: ';', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Names())
	assert.Equal(t, "2", tbl.Cell(0, 1))
}

func TestLoadReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"ragged row", "a,b\n1,2,3\n"},
		{"duplicate header", "a,a\n1,2\n"},
		{"blank header", "a,\n1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReader(strings.NewReader(tt.src), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrData), "got %v", err)
		})
	}
}

func TestLoadMissingFileIsNotFound(t *testing.T) {
	tbl, err := Load(filepath.Join(t.TempDir(), "absent.csv"), nil)
	require.Error(t, err)
	assert.Nil(t, tbl)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))

	tbl, err := Load(path, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())
}

func TestStreamRowsAndBatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.csv")
	src := "Profit,Year\n1,2024\n2,2024\n3,2024\n4,2024\n5,2024\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	ctx := context.Background()
	rows := make(chan Row)
	header, err := StreamRows(ctx, path, nil, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"Profit", "Year"}, header)

	batches := make(chan Batch)
	Batcher(ctx, rows, 2, batches)

	var sizes []int
	var total int
	for b := range batches {
		sizes = append(sizes, len(b.Rows))
		tbl, err := b.Table(header)
		require.NoError(t, err)
		total += tbl.NumRows()
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 5, total)
}

func TestStreamRowsReportsMalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n1,2,3\n"), 0o644))

	rows := make(chan Row, 4)
	_, err := StreamRows(context.Background(), path, nil, rows)
	require.NoError(t, err)

	var got []Row
	for r := range rows {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.NoError(t, got[0].Err)
	assert.True(t, errors.Is(got[1].Err, errs.ErrData))

	_, err = Batch{Rows: got}.Table([]string{"a", "b"})
	assert.Error(t, err)
}

func TestStreamRowsMissingFile(t *testing.T) {
	_, err := StreamRows(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), nil, make(chan Row))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
