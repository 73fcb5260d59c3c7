// Package table holds the labeled tabular structure shared by allocation inputs
// and generated populations, plus its CSV boundary.
package table

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrFieldNotFound is returned when a row is asked for a column it does not have.
	ErrFieldNotFound = errors.New("field not found")

	// ErrArity is returned when a row's width differs from its table's header.
	ErrArity = errors.New("row arity does not match columns")
)

// Table is an ordered set of rows with a fixed column header.
// All cell values are kept as strings, exactly as they appear in CSV.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a table from a header and rows. Every row must have one value per column.
func New(columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}

	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(r), len(columns), ErrArity)
		}
	}

	return &Table{
		columns: slices.Clone(columns),
		index:   index,
		rows:    rows,
	}, nil
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the i-th row.
func (t *Table) Row(i int) Row {
	return Row{table: t, values: t.rows[i]}
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns every value of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q: %w", name, ErrFieldNotFound)
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Equal reports whether both tables have the same header and the same rows in the same order.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !slices.Equal(t.columns, other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i := range t.rows {
		if !slices.Equal(t.rows[i], other.rows[i]) {
			return false
		}
	}
	return true
}

// Row is a read-only view of one table row addressed by column name.
type Row struct {
	table  *Table
	values []string
}

// Get returns the value of the named column.
func (r Row) Get(name string) (string, error) {
	i, ok := r.table.index[name]
	if !ok {
		return "", fmt.Errorf("column %q: %w", name, ErrFieldNotFound)
	}
	return r.values[i], nil
}

// Values returns a copy of the row's values in column order.
func (r Row) Values() []string {
	return slices.Clone(r.values)
}
