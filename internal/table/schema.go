package table

import (
	"fmt"
	"slices"
)

// Schema is a column header assembled from fixed identity columns followed by
// model-declared fields.
type Schema struct {
	columns []string
}

// NewSchema concatenates identity and fields. Column names must be unique.
func NewSchema(identity []string, fields []string) (Schema, error) {
	columns := make([]string, 0, len(identity)+len(fields))
	columns = append(columns, identity...)
	columns = append(columns, fields...)

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return Schema{}, fmt.Errorf("duplicate column %q in schema", c)
		}
		seen[c] = true
	}
	return Schema{columns: columns}, nil
}

// Columns returns a copy of the schema's column names.
func (s Schema) Columns() []string {
	return slices.Clone(s.columns)
}

// Width is the number of columns.
func (s Schema) Width() int {
	return len(s.columns)
}

// Check verifies that values has exactly one entry per column.
func (s Schema) Check(values []string) error {
	if len(values) != len(s.columns) {
		return fmt.Errorf("got %d values for %d columns: %w", len(values), len(s.columns), ErrArity)
	}
	return nil
}

// Builder accumulates rows against a schema and produces a Table.
// Rows keep their append order.
type Builder struct {
	schema Schema
	rows   [][]string
}

// NewBuilder returns an empty builder for schema.
func NewBuilder(schema Schema) *Builder {
	return &Builder{schema: schema}
}

// Append validates arity and adds a row.
func (b *Builder) Append(values []string) error {
	if err := b.schema.Check(values); err != nil {
		return err
	}
	b.rows = append(b.rows, values)
	return nil
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Table wraps the accumulated rows. The builder must not be used afterwards.
func (b *Builder) Table() *Table {
	index := make(map[string]int, len(b.schema.columns))
	for i, c := range b.schema.columns {
		index[c] = i
	}
	rows := b.rows
	if rows == nil {
		rows = [][]string{}
	}
	b.rows = nil
	return &Table{
		columns: b.schema.Columns(),
		index:   index,
		rows:    rows,
	}
}
