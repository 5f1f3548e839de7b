// Package table provides the wide, string-typed table the reconciliation
// pipeline operates on. All cell values are text: customer and account
// identifiers carry leading zeros and mixed alphanumerics that must never be
// reinterpreted as numbers. Columns keep their order of first appearance.
package table

import (
	"fmt"
	"sort"
)

// Table is an ordered-column table of string cells. Rows are stored aligned
// to the column order, so every row slice has exactly NumCols entries.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates a table with the given column order and no rows.
func New(columns []string) (*Table, error) {
	index := make(map[string]int, len(columns))
	cols := make([]string, len(columns))

	for i, name := range columns {
		if _, exists := index[name]; exists {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
		cols[i] = name
	}

	return &Table{
		columns: cols,
		index:   index,
		rows:    make([][]string, 0),
	}, nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// AddColumn appends a new column filled with the given value for every
// existing row.
func (t *Table) AddColumn(name, fill string) error {
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("column %q already exists", name)
	}

	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], fill)
	}
	return nil
}

// DropColumn removes the named column and its cells from every row.
func (t *Table) DropColumn(name string) error {
	pos, ok := t.index[name]
	if !ok {
		return fmt.Errorf("column %q does not exist", name)
	}

	t.columns = append(t.columns[:pos], t.columns[pos+1:]...)
	delete(t.index, name)
	for col, i := range t.index {
		if i > pos {
			t.index[col] = i - 1
		}
	}
	for i := range t.rows {
		t.rows[i] = append(t.rows[i][:pos], t.rows[i][pos+1:]...)
	}
	return nil
}

// AppendRow adds one row. The value count must match the column count.
func (t *Table) AppendRow(values []string) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}

	row := make([]string, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// AppendTable appends every row of other, realigning cells by column name.
// Both tables must cover the same column set.
func (t *Table) AppendTable(other *Table) error {
	if len(other.columns) != len(t.columns) {
		return fmt.Errorf("column sets differ: %d vs %d columns", len(other.columns), len(t.columns))
	}

	// position in other for each of our columns
	mapping := make([]int, len(t.columns))
	for i, name := range t.columns {
		pos, ok := other.index[name]
		if !ok {
			return fmt.Errorf("column %q missing from appended table", name)
		}
		mapping[i] = pos
	}

	for _, src := range other.rows {
		row := make([]string, len(t.columns))
		for i, pos := range mapping {
			row[i] = src[pos]
		}
		t.rows = append(t.rows, row)
	}
	return nil
}

// Value returns the cell at the given row and column, or "" when either is
// out of range.
func (t *Table) Value(row int, column string) string {
	pos, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return ""
	}
	return t.rows[row][pos]
}

// SetValue replaces the cell at the given row and column. Unknown columns
// and out-of-range rows are ignored.
func (t *Table) SetValue(row int, column, value string) {
	pos, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return
	}
	t.rows[row][pos] = value
}

// Row returns a copy of the row at the given index, nil when out of range.
func (t *Table) Row(row int) []string {
	if row < 0 || row >= len(t.rows) {
		return nil
	}
	values := make([]string, len(t.rows[row]))
	copy(values, t.rows[row])
	return values
}

// Column returns a copy of all values of the named column in row order, nil
// when the column does not exist.
func (t *Table) Column(name string) []string {
	pos, ok := t.index[name]
	if !ok {
		return nil
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[pos]
	}
	return values
}

// SortRowsByColumn stably sorts rows by the named column. Relative order of
// rows with equal keys is preserved.
func (t *Table) SortRowsByColumn(name string) error {
	pos, ok := t.index[name]
	if !ok {
		return fmt.Errorf("column %q does not exist", name)
	}

	sort.SliceStable(t.rows, func(i, j int) bool {
		return t.rows[i][pos] < t.rows[j][pos]
	})
	return nil
}
