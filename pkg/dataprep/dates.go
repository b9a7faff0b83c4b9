package dataprep

import (
	"strconv"
	"strings"
	"time"

	"salesforecast/pkg/data"
	"salesforecast/pkg/errs"
)

// Names of the calendar columns derived from the date column.
const (
	YearColumn  = "Year"
	MonthColumn = "Month"
	DayColumn   = "Day"
)

// DefaultDateLayouts are tried in order when no layouts are configured.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate parses s with the first layout that accepts it.
func ParseDate(s string, layouts []string) (time.Time, bool) {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ExtractDateParts appends Year, Month and Day columns parsed from column.
// The date column itself is kept. A table without the column is returned
// unchanged; missing date cells give missing calendar cells.
func ExtractDateParts(t *data.Table, column string, layouts []string) (*data.Table, error) {
	if column == "" || !t.Has(column) {
		return t, nil
	}
	cells, _ := t.Column(column)
	years := make([]string, len(cells))
	months := make([]string, len(cells))
	days := make([]string, len(cells))
	for i, s := range cells {
		if data.IsMissing(s) {
			continue
		}
		ts, ok := ParseDate(s, layouts)
		if !ok {
			return nil, errs.Data("row %d: cannot parse %q in column %q as a date", i+1, s, column).
				With("column", column)
		}
		years[i] = strconv.Itoa(ts.Year())
		months[i] = strconv.Itoa(int(ts.Month()))
		days[i] = strconv.Itoa(ts.Day())
	}

	out, err := t.WithColumn(YearColumn, years)
	if err != nil {
		return nil, err
	}
	if out, err = out.WithColumn(MonthColumn, months); err != nil {
		return nil, err
	}
	return out.WithColumn(DayColumn, days)
}
