package data

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"salesforecast/pkg/errs"
)

// Kind is the value type of a column, decided when the column is created.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named, typed column of a Table.
type Column struct {
	Name string
	Kind Kind
}

// Table is an immutable, row-ordered record table. Cells are kept as the
// strings they were read as; missing cells are detected with IsMissing.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]string
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL":
		return true
	}
	return false
}

// NewTable copies header and rows into a Table and infers each column's kind.
func NewTable(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, errs.Data("table has no columns")
	}
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if h == "" {
			return nil, errs.Data("empty column name in header")
		}
		if _, ok := seen[h]; ok {
			return nil, errs.Data("duplicate column %q in header", h)
		}
		seen[h] = struct{}{}
	}

	cp := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errs.Data("row %d has %d fields, header has %d", i+1, len(row), len(header))
		}
		cp[i] = append([]string(nil), row...)
	}

	columns := make([]Column, len(header))
	for j, h := range header {
		columns[j] = Column{Name: h, Kind: inferKind(cp, j)}
	}
	return newTable(columns, cp), nil
}

func newTable(columns []Column, rows [][]string) *Table {
	index := make(map[string]int, len(columns))
	for j, c := range columns {
		index[c.Name] = j
	}
	return &Table{columns: columns, index: index, rows: rows}
}

// inferKind treats a column as numeric when every non-missing cell parses as a float.
func inferKind(rows [][]string, col int) Kind {
	for _, row := range rows {
		v := row[col]
		if IsMissing(v) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return Categorical
		}
	}
	return Numeric
}

func (t *Table) NumRows() int { return len(t.rows) }
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns a copy of the column definitions in order.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.Name
	}
	return out
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if j, ok := t.index[name]; ok {
		return j
	}
	return -1
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Kind returns the kind of the named column.
func (t *Table) Kind(name string) (Kind, bool) {
	j, ok := t.index[name]
	if !ok {
		return Numeric, false
	}
	return t.columns[j].Kind, true
}

// Cell returns the raw cell at row r, column c.
func (t *Table) Cell(r, c int) string { return t.rows[r][c] }

// Float parses the cell at (r, c). ok is false for missing or non-numeric cells.
func (t *Table) Float(r, c int) (v float64, ok bool) {
	s := t.rows[r][c]
	if IsMissing(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []string {
	return append([]string(nil), t.rows[r]...)
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Records returns a deep copy of all rows.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// MissingCount counts missing cells across the table.
func (t *Table) MissingCount() int {
	n := 0
	for _, row := range t.rows {
		for _, v := range row {
			if IsMissing(v) {
				n++
			}
		}
	}
	return n
}

// WithRows returns a table with the same columns and the given rows.
// Rows are taken as-is and must match the column count.
func (t *Table) WithRows(rows [][]string) *Table {
	return newTable(t.Columns(), rows)
}

// Select returns a table holding only the rows at the given positions, in that order.
func (t *Table) Select(rows []int) *Table {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), t.rows[r]...)
	}
	return newTable(t.Columns(), out)
}

// WithColumn appends a column. Its kind is inferred from the values.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if t.Has(name) {
		return nil, errs.Schema("column %q already exists", name)
	}
	if len(values) != len(t.rows) {
		return nil, errs.Data("column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		r := make([]string, len(row), len(row)+1)
		copy(r, row)
		rows[i] = append(r, values[i])
	}
	columns := append(t.Columns(), Column{Name: name})
	columns[len(columns)-1].Kind = inferKind(rows, len(columns)-1)
	return newTable(columns, rows), nil
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var keep []int
	var columns []Column
	for j, c := range t.columns {
		if _, ok := drop[c.Name]; !ok {
			keep = append(keep, j)
			columns = append(columns, c)
		}
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		r := make([]string, len(keep))
		for k, j := range keep {
			r[k] = row[j]
		}
		rows[i] = r
	}
	return newTable(columns, rows)
}

// WriteCSV writes the header and all rows with the given delimiter.
func (t *Table) WriteCSV(w io.Writer, comma rune) error {
	writer := csv.NewWriter(w)
	if comma != 0 {
		writer.Comma = comma
	}
	if err := writer.Write(t.Names()); err != nil {
		return err
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return err
	}
	return writer.Error()
}
