package dataprep

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/pkg/data"
	"salesforecast/pkg/errs"
)

func mustTable(t *testing.T, header []string, rows [][]string) *data.Table {
	t.Helper()
	tbl, err := data.NewTable(header, rows)
	require.NoError(t, err)
	return tbl
}

func TestDropDuplicatesKeepsFirstOccurrences(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, [][]string{
		{"1", "x"}, {"2", "y"}, {"1", "x"}, {"3", "z"}, {"2", "y"}, {"1", "y"},
	})
	out := DropDuplicates(tbl)
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}, {"1", "y"}}, out.Records())
	assert.Equal(t, 6, tbl.NumRows())
}

func TestDropDuplicatesTreatsMissingTokensAlike(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, [][]string{
		{"1", ""}, {"1", "NA"}, {"1", "null"}, {"2", "NA"},
	})
	out := DropDuplicates(tbl)
	assert.Equal(t, [][]string{{"1", ""}, {"2", "NA"}}, out.Records())
}

func TestDropDuplicatesCountEqualsDistinctRows(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(40)
		rows := make([][]string, n)
		distinct := map[string]struct{}{}
		for i := range rows {
			rows[i] = []string{strconv.Itoa(rng.Intn(3)), strconv.Itoa(rng.Intn(3))}
			distinct[strings.Join(rows[i], ",")] = struct{}{}
		}
		out := DropDuplicates(mustTable(t, []string{"a", "b"}, rows))
		assert.Equal(t, len(distinct), out.NumRows())
	}
}

func TestForwardFill(t *testing.T) {
	tbl := mustTable(t, []string{"Sales", "Region"}, [][]string{
		{"", ""},
		{"10", "North"},
		{"", ""},
		{"NA", "South"},
		{"30", ""},
	})
	out := ForwardFill(tbl)
	assert.Equal(t, [][]string{
		{"", ""},
		{"10", "North"},
		{"10", "North"},
		{"10", "South"},
		{"30", "South"},
	}, out.Records())
	assert.Equal(t, "", tbl.Cell(2, 0), "input untouched")
}

func TestForwardFillMatchesNearestPrecedingValue(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	rows := make([][]string, 60)
	for i := range rows {
		rows[i] = make([]string, 3)
		for j := range rows[i] {
			if rng.Float64() < 0.4 {
				rows[i][j] = ""
			} else {
				rows[i][j] = strconv.Itoa(rng.Intn(100))
			}
		}
	}
	tbl := mustTable(t, []string{"a", "b", "c"}, rows)
	out := ForwardFill(tbl)

	for j := 0; j < 3; j++ {
		for i := range rows {
			want := ""
			for k := i; k >= 0; k-- {
				if rows[k][j] != "" {
					want = rows[k][j]
					break
				}
			}
			assert.Equal(t, want, out.Cell(i, j), "row %d col %d", i, j)
		}
	}
}

func TestResolveLeading(t *testing.T) {
	filled := ForwardFill(mustTable(t, []string{"a", "b"}, [][]string{
		{"", "1"},
		{"", "2"},
		{"5", ""},
		{"6", "4"},
	}))

	dropped, err := ResolveLeading(filled, LeadingDrop)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5", "2"}, {"6", "4"}}, dropped.Records())

	back, err := ResolveLeading(filled, LeadingBackfill)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5", "1"}, {"5", "2"}, {"5", "2"}, {"6", "4"}}, back.Records())

	_, err = ResolveLeading(filled, LeadingError)
	assert.True(t, errors.Is(err, errs.ErrData))

	clean := mustTable(t, []string{"a"}, [][]string{{"1"}})
	same, err := ResolveLeading(clean, LeadingError)
	require.NoError(t, err)
	assert.Equal(t, 1, same.NumRows())
}

func TestResolveLeadingEmptyColumn(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, [][]string{{"1", ""}, {"2", ""}})
	for _, p := range []LeadingPolicy{LeadingDrop, LeadingError, LeadingBackfill} {
		_, err := ResolveLeading(tbl, p)
		assert.True(t, errors.Is(err, errs.ErrData), "policy %s", p)
	}
}

func TestResolveLeadingSkipsUnusedColumns(t *testing.T) {
	tbl := mustTable(t, []string{"a", "notes", "empty"}, [][]string{
		{"1", "", ""},
		{"2", "", ""},
		{"3", "ok", ""},
	})
	for _, p := range []LeadingPolicy{LeadingDrop, LeadingError, LeadingBackfill} {
		out, err := ResolveLeading(tbl, p, "notes", "empty")
		require.NoError(t, err, "policy %s", p)
		assert.Equal(t, tbl.Records(), out.Records(), "policy %s", p)
	}
}

func TestParseLeadingPolicy(t *testing.T) {
	p, err := ParseLeadingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LeadingDrop, p)
	p, err = ParseLeadingPolicy(" Backfill ")
	require.NoError(t, err)
	assert.Equal(t, LeadingBackfill, p)
	_, err = ParseLeadingPolicy("zero")
	assert.Error(t, err)
}

func TestFillDescriptive(t *testing.T) {
	tbl := mustTable(t, []string{"Sales", "Region", "Empty"}, [][]string{
		{"10", "North", ""},
		{"", "South", ""},
		{"40", "", ""},
		{"20", "South", ""},
		{"", "North", ""},
	})
	out := FillDescriptive(tbl)

	sales, _ := out.Column("Sales")
	assert.Equal(t, []string{"10", "20", "40", "20", "20"}, sales)
	region, _ := out.Column("Region")
	assert.Equal(t, []string{"North", "South", "North", "South", "North"}, region, "tie goes to first seen")
	empty, _ := out.Column("Empty")
	assert.Equal(t, []string{"", "", "", "", ""}, empty)
}

func TestFillDescriptiveLeavesNoNumericGapsAndKeepsValues(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rows := make([][]string, 30)
	for i := range rows {
		rows[i] = make([]string, 2)
		for j := range rows[i] {
			if i > 0 && rng.Float64() < 0.3 {
				continue
			}
			rows[i][j] = strconv.FormatFloat(rng.Float64()*100, 'f', 3, 64)
		}
	}
	tbl := mustTable(t, []string{"x", "y"}, rows)
	out := FillDescriptive(tbl)

	for i := range rows {
		for j := range rows[i] {
			assert.False(t, data.IsMissing(out.Cell(i, j)))
			if rows[i][j] != "" {
				assert.Equal(t, rows[i][j], out.Cell(i, j))
			}
		}
	}
}

func TestExtractDateParts(t *testing.T) {
	tbl := mustTable(t, []string{"Date", "Sales"}, [][]string{
		{"2023-01-15", "10"},
		{"2024-12-31", "20"},
		{"", "30"},
	})
	out, err := ExtractDateParts(tbl, "Date", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Sales", "Year", "Month", "Day"}, out.Names())
	assert.Equal(t, []string{"2023-01-15", "10", "2023", "1", "15"}, out.Row(0))
	assert.Equal(t, []string{"2024-12-31", "20", "2024", "12", "31"}, out.Row(1))
	assert.Equal(t, []string{"", "30", "", "", ""}, out.Row(2))

	kind, _ := out.Kind("Month")
	assert.Equal(t, data.Numeric, kind)

	same, err := ExtractDateParts(tbl, "Missing", nil)
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), same.Names())
}

func TestExtractDatePartsCustomLayoutAndErrors(t *testing.T) {
	tbl := mustTable(t, []string{"Date"}, [][]string{{"15.01.2023"}})
	out, err := ExtractDateParts(tbl, "Date", []string{"02.01.2006"})
	require.NoError(t, err)
	assert.Equal(t, "2023", out.Cell(0, 1))

	_, err = ExtractDateParts(tbl, "Date", nil)
	assert.True(t, errors.Is(err, errs.ErrData))

	clash := mustTable(t, []string{"Date", "Year"}, [][]string{{"2023-01-01", "x"}})
	_, err = ExtractDateParts(clash, "Date", nil)
	assert.True(t, errors.Is(err, errs.ErrSchema))
}

func TestCleanForecastAndDescriptive(t *testing.T) {
	tbl := mustTable(t, []string{"Date", "Sales", "Profit"}, [][]string{
		{"2023-01-01", "", "1"},
		{"2023-01-02", "10", ""},
		{"2023-01-02", "10", ""},
		{"2023-01-03", "", "3"},
		{"2023-01-04", "30", "4"},
	})
	opts := CleanOptions{DateColumn: "Date", Leading: LeadingDrop}

	fc, err := CleanForecast(tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, fc.NumRows())
	assert.Equal(t, 0, fc.MissingCount())
	assert.Equal(t, []string{"2023-01-03", "10", "3", "2023", "1", "3"}, fc.Row(1))

	ds, err := CleanDescriptive(tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.NumRows())
	assert.Equal(t, 0, ds.MissingCount())
	assert.Equal(t, "20", ds.Cell(0, 1))
}
