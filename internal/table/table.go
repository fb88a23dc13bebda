// Package table provides the in-memory data model shared by the source
// readers, the entity classifier, and the canonical writer: a column-major
// table of tagged values with explicit missing-value semantics.
package table

import (
	"fmt"
	"strings"
)

// Table is a column-major table. Columns keep insertion order and every
// column holds exactly one Value per row.
type Table struct {
	names []string
	cols  map[string][]Value
}

// New returns an empty table with no rows and no columns.
func New() *Table {
	return &Table{cols: make(map[string][]Value)}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.names) == 0 {
		return 0
	}
	return len(t.cols[t.names[0]])
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.names) }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the values of the named column. The returned slice is
// the table's backing storage and must not be modified.
func (t *Table) Column(name string) ([]Value, bool) {
	values, ok := t.cols[name]
	return values, ok
}

// AddColumn appends a column to the table. The first column fixes the
// row count; later columns must match it.
func (t *Table) AddColumn(name string, values []Value) error {
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(t.names) > 0 && len(values) != t.NumRows() {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	t.names = append(t.names, name)
	t.cols[name] = values
	return nil
}

// SetColumn replaces the values of the named column, creating the
// column at the end of the table if it does not exist yet. The value
// count must match the table's row count.
func (t *Table) SetColumn(name string, values []Value) error {
	if len(t.names) > 0 && len(values) != t.NumRows() {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	if _, ok := t.cols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.cols[name] = values
	return nil
}

// SetConst sets every row of the named column to v, creating the column
// at the end of the table if it does not exist yet.
func (t *Table) SetConst(name string, v Value) {
	values := make([]Value, t.NumRows())
	for i := range values {
		values[i] = v
	}
	if _, ok := t.cols[name]; !ok {
		t.names = append(t.names, name)
	}
	t.cols[name] = values
}

// Rename changes a column's name, keeping its position. Renaming onto an
// existing column is an error.
func (t *Table) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	if _, ok := t.cols[oldName]; !ok {
		return fmt.Errorf("no column %q", oldName)
	}
	if _, ok := t.cols[newName]; ok {
		return fmt.Errorf("column %q already exists", newName)
	}
	for i, name := range t.names {
		if name == oldName {
			t.names[i] = newName
			break
		}
	}
	t.cols[newName] = t.cols[oldName]
	delete(t.cols, oldName)
	return nil
}

// UppercaseColumns renames every column to its upper-case form. Two
// columns folding to the same name is an error.
func (t *Table) UppercaseColumns() error {
	for _, name := range t.Columns() {
		if err := t.Rename(name, strings.ToUpper(name)); err != nil {
			return err
		}
	}
	return nil
}

// Select returns a new table holding the named columns in the given
// order. Column storage is shared with the receiver.
func (t *Table) Select(names []string) (*Table, error) {
	out := New()
	for _, name := range names {
		values, ok := t.cols[name]
		if !ok {
			return nil, fmt.Errorf("no column %q", name)
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReorderFront moves the named columns, where present, to the front of
// the table in the given order. All other columns keep their relative
// order. Names not present in the table are ignored.
func (t *Table) ReorderFront(front ...string) {
	seen := make(map[string]bool, len(front))
	order := make([]string, 0, len(t.names))
	for _, name := range front {
		if _, ok := t.cols[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, name := range t.names {
		if !seen[name] {
			order = append(order, name)
		}
	}
	t.names = order
}

// FilterRows returns a new table holding the rows for which keep
// returns true. Column order is preserved and storage is copied.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	out := New()
	for _, name := range t.names {
		src := t.cols[name]
		values := make([]Value, len(rows))
		for n, i := range rows {
			values[n] = src[i]
		}
		out.names = append(out.names, name)
		out.cols[name] = values
	}
	return out
}
