package dataprep

import (
	"fmt"
	"slices"
	"strings"

	"salesforecast/pkg/data"
	"salesforecast/pkg/errs"
)

// LeadingPolicy decides what happens to cells forward fill cannot reach:
// the missing run at the top of a column.
type LeadingPolicy string

const (
	LeadingDrop     LeadingPolicy = "drop"
	LeadingError    LeadingPolicy = "error"
	LeadingBackfill LeadingPolicy = "backfill"
)

// ParseLeadingPolicy maps a config string to a policy. Empty means drop.
func ParseLeadingPolicy(s string) (LeadingPolicy, error) {
	switch p := LeadingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return LeadingDrop, nil
	case LeadingDrop, LeadingError, LeadingBackfill:
		return p, nil
	}
	return "", fmt.Errorf("unknown leading-missing policy %q", s)
}

// DropDuplicates removes rows that repeat an earlier row in every column,
// keeping first occurrences in their original order.
func DropDuplicates(t *data.Table) *data.Table {
	seen := make(map[string]struct{}, t.NumRows())
	var keep []int
	cells := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for c, v := range t.Row(i) {
			if data.IsMissing(v) {
				v = ""
			}
			cells[c] = v
		}
		key := strings.Join(cells, "\x1f")
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keep = append(keep, i)
		}
	}
	return t.Select(keep)
}

// ForwardFill replaces each missing cell with the nearest preceding
// non-missing value in the same column. Leading gaps stay missing.
func ForwardFill(t *data.Table) *data.Table {
	rows := t.Records()
	for c := 0; c < t.NumCols(); c++ {
		last, has := "", false
		for r := range rows {
			if data.IsMissing(rows[r][c]) {
				if has {
					rows[r][c] = last
				}
				continue
			}
			last, has = rows[r][c], true
		}
	}
	return t.WithRows(rows)
}

// ResolveLeading applies policy to the missing cells left after ForwardFill.
// A column without a single value fails under every policy. Columns named in
// skip are left as they are and never drop or reject rows.
func ResolveLeading(t *data.Table, policy LeadingPolicy, skip ...string) (*data.Table, error) {
	rows := t.Records()
	first := make([]int, t.NumCols())
	for c, col := range t.Columns() {
		first[c] = 0
		if slices.Contains(skip, col.Name) {
			continue
		}
		first[c] = -1
		for r := range rows {
			if !data.IsMissing(rows[r][c]) {
				first[c] = r
				break
			}
		}
		if first[c] < 0 && len(rows) > 0 {
			return nil, errs.Data("column %q has no values", col.Name).With("column", col.Name)
		}
	}

	switch policy {
	case LeadingError:
		for c, col := range t.Columns() {
			if first[c] > 0 {
				return nil, errs.Data("column %q starts with %d missing rows", col.Name, first[c]).
					With("column", col.Name)
			}
		}
		return t, nil
	case LeadingBackfill:
		for c := range first {
			for r := 0; r < first[c]; r++ {
				rows[r][c] = rows[first[c]][c]
			}
		}
		return t.WithRows(rows), nil
	case LeadingDrop, "":
		start := 0
		for _, f := range first {
			start = max(start, f)
		}
		keep := make([]int, 0, len(rows)-start)
		for r := start; r < len(rows); r++ {
			keep = append(keep, r)
		}
		return t.Select(keep), nil
	}
	return nil, fmt.Errorf("unknown leading-missing policy %q", policy)
}

// CleanOptions configures the cleaning variants. Skip names columns that
// never become features or the target; the leading policy ignores them.
type CleanOptions struct {
	DateColumn  string
	DateLayouts []string
	Leading     LeadingPolicy
	Skip        []string
}

// CleanForecast is the forecasting variant: dedupe, forward fill, resolve
// leading gaps, then decompose the date column.
func CleanForecast(t *data.Table, opts CleanOptions) (*data.Table, error) {
	out := ForwardFill(DropDuplicates(t))
	out, err := ResolveLeading(out, opts.Leading, opts.Skip...)
	if err != nil {
		return nil, err
	}
	return ExtractDateParts(out, opts.DateColumn, opts.DateLayouts)
}

// CleanDescriptive is the descriptive variant: dedupe, median/mode fill,
// then decompose the date column.
func CleanDescriptive(t *data.Table, opts CleanOptions) (*data.Table, error) {
	return ExtractDateParts(FillDescriptive(DropDuplicates(t)), opts.DateColumn, opts.DateLayouts)
}
