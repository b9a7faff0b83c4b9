package dataprep

import (
	"strconv"
	"strings"

	"salesforecast/pkg/data"
	"salesforecast/pkg/stats"
)

// FillDescriptive fills missing numeric cells with the column median and
// missing categorical cells with the column mode. Statistics come from the
// non-missing cells of that column only. Columns with no values stay missing.
func FillDescriptive(t *data.Table) *data.Table {
	rows := t.Records()
	for c, col := range t.Columns() {
		values := make([]string, len(rows))
		for r := range rows {
			values[r] = rows[r][c]
		}
		if col.Kind == data.Numeric {
			values = ImputeMedian(values)
		} else {
			values = ImputeMode(values)
		}
		for r := range rows {
			rows[r][c] = values[r]
		}
	}
	return t.WithRows(rows)
}

// ImputeMedian returns a copy of col with missing numeric cells set to the median.
func ImputeMedian(col []string) []string {
	var nums []float64
	for _, v := range col {
		if data.IsMissing(v) {
			continue
		}
		if num, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			nums = append(nums, num)
		}
	}
	if len(nums) == 0 {
		return append([]string(nil), col...)
	}
	return fillMissing(col, strconv.FormatFloat(stats.Median(nums), 'f', -1, 64))
}

// ImputeMode returns a copy of col with missing cells set to the most
// frequent value. Ties go to the value seen first.
func ImputeMode(col []string) []string {
	counts := make(map[string]int)
	var order []string
	for _, v := range col {
		if data.IsMissing(v) {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	mode, best := "", 0
	for _, v := range order {
		if counts[v] > best {
			mode, best = v, counts[v]
		}
	}
	if best == 0 {
		return append([]string(nil), col...)
	}
	return fillMissing(col, mode)
}

func fillMissing(col []string, value string) []string {
	out := make([]string, len(col))
	for i, v := range col {
		if data.IsMissing(v) {
			out[i] = value
		} else {
			out[i] = v
		}
	}
	return out
}
