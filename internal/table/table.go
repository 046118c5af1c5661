package table

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/errors"
)

// Table represents an ordered sequence of named, equal-length columns. Row
// order is significant and preserved unless an operation explicitly sorts or
// reshapes. A Table owns its columns; operations either return a new Table or
// carry an explicit in-place variant.
type Table struct {
	columns map[string]Column
	order   []string // Maintains column order
}

// New creates a new Table from columns. It fails with a SchemaError if
// column names repeat or column lengths differ.
func New(cols ...Column) (*Table, error) {
	columns := make(map[string]Column, len(cols))
	order := make([]string, 0, len(cols))

	rowCount := -1
	for _, c := range cols {
		name := c.Name()
		if _, exists := columns[name]; exists {
			return nil, errors.NewSchemaError("New", name, "duplicate column name")
		}
		if rowCount >= 0 && c.Len() != rowCount {
			return nil, errors.NewSchemaError("New", name,
				fmt.Sprintf("column length %d does not match row count %d", c.Len(), rowCount))
		}
		rowCount = c.Len()
		columns[name] = c
		order = append(order, name)
	}

	return &Table{columns: columns, order: order}, nil
}

// newUnchecked builds a Table from columns already known to satisfy the
// invariants (internal result paths).
func newUnchecked(cols ...Column) *Table {
	columns := make(map[string]Column, len(cols))
	order := make([]string, 0, len(cols))
	for _, c := range cols {
		columns[c.Name()] = c
		order = append(order, c.Name())
	}
	return &Table{columns: columns, order: order}
}

// Columns returns the names of all columns in order
func (t *Table) Columns() []string {
	if len(t.order) == 0 {
		return []string{}
	}
	return append([]string(nil), t.order...)
}

// Len returns the number of rows
func (t *Table) Len() int {
	if len(t.order) == 0 {
		return 0
	}
	if c, exists := t.columns[t.order[0]]; exists {
		return c.Len()
	}
	return 0
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// Column returns the column for the given name
func (t *Table) Column(name string) (Column, bool) {
	c, exists := t.columns[name]
	return c, exists
}

// HasColumn checks if a column exists
func (t *Table) HasColumn(name string) bool {
	_, exists := t.columns[name]
	return exists
}

// Select returns a new Table with only the specified columns, in the given
// order. It fails with a KeyError on an unknown name.
func (t *Table) Select(names ...string) (*Table, error) {
	newColumns := make(map[string]Column, len(names))
	newOrder := make([]string, 0, len(names))

	for _, name := range names {
		c, exists := t.columns[name]
		if !exists {
			return nil, errors.NewKeyError("Select", name)
		}
		if _, dup := newColumns[name]; dup {
			return nil, errors.NewSchemaError("Select", name, "column selected twice")
		}
		newColumns[name] = c
		newOrder = append(newOrder, name)
	}

	return &Table{columns: newColumns, order: newOrder}, nil
}

// Drop returns a new Table without the specified columns
func (t *Table) Drop(names ...string) *Table {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}

	newColumns := make(map[string]Column)
	newOrder := make([]string, 0, len(t.order))
	for _, name := range t.order {
		if !dropSet[name] {
			newColumns[name] = t.columns[name]
			newOrder = append(newOrder, name)
		}
	}

	return &Table{columns: newColumns, order: newOrder}
}

// WithColumn returns a new Table with the column appended, or replaced in
// position if the name already exists. It fails with a SchemaError if the
// column length does not match the row count. The receiver is untouched.
func (t *Table) WithColumn(col Column) (*Table, error) {
	if t.Width() > 0 && col.Len() != t.Len() {
		return nil, errors.NewSchemaError("WithColumn", col.Name(),
			fmt.Sprintf("column length %d does not match row count %d", col.Len(), t.Len()))
	}

	newColumns := make(map[string]Column, len(t.columns)+1)
	for name, c := range t.columns {
		newColumns[name] = c
	}
	newOrder := append([]string(nil), t.order...)
	if _, exists := t.columns[col.Name()]; !exists {
		newOrder = append(newOrder, col.Name())
	}
	newColumns[col.Name()] = col

	return &Table{columns: newColumns, order: newOrder}, nil
}

// SetColumn is the in-place variant of WithColumn. Validation happens before
// any mutation, so a failed call leaves the table unchanged.
func (t *Table) SetColumn(col Column) error {
	if t.Width() > 0 && col.Len() != t.Len() {
		return errors.NewSchemaError("SetColumn", col.Name(),
			fmt.Sprintf("column length %d does not match row count %d", col.Len(), t.Len()))
	}
	if _, exists := t.columns[col.Name()]; !exists {
		t.order = append(t.order, col.Name())
	}
	t.columns[col.Name()] = col
	return nil
}

// FilterRows returns a new Table containing only the rows for which the
// predicate returns true, preserving row order.
func (t *Table) FilterRows(pred func(row int) bool, mem memory.Allocator) (*Table, error) {
	var indices []int
	for i := 0; i < t.Len(); i++ {
		if pred(i) {
			indices = append(indices, i)
		}
	}
	return t.take(indices, mem)
}

// Slice creates a new Table containing rows from start (inclusive) to end
// (exclusive). Out-of-range bounds clamp; an empty range yields an empty
// slice of the same schema.
func (t *Table) Slice(start, end int, mem memory.Allocator) (*Table, error) {
	length := t.Len()
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start >= end {
		return t.take(nil, mem)
	}
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return t.take(indices, mem)
}

// Clone returns a deep copy of the table with independent storage.
func (t *Table) Clone(mem memory.Allocator) (*Table, error) {
	indices := make([]int, t.Len())
	for i := range indices {
		indices[i] = i
	}
	return t.take(indices, mem)
}

// take gathers the given row indices into a new Table. A negative index
// yields a null row cell in every column (join fill).
func (t *Table) take(indices []int, mem memory.Allocator) (*Table, error) {
	cols := make([]Column, 0, len(t.order))
	for _, name := range t.order {
		col, err := takeColumn(t.columns[name], name, indices, mem)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return newUnchecked(cols...), nil
}

// takeColumn gathers rows of a single column under an output name.
func takeColumn(src Column, name string, indices []int, mem memory.Allocator) (Column, error) {
	r := newColReader(src)
	defer r.release()

	b, err := newColumnBuilder(src.DataType(), len(indices))
	if err != nil {
		return nil, err
	}
	for _, idx := range indices {
		b.appendFrom(r, idx)
	}
	return b.build(name, mem), nil
}

// Concat concatenates tables vertically. When unionColumns is false all
// tables must share an identical schema (names, order, and types) or the
// operation fails with a SchemaError; when true the result schema is the
// union of all input schemas in first-seen order and missing cells are null.
func (t *Table) Concat(others []*Table, unionColumns bool, mem memory.Allocator) (*Table, error) {
	all := append([]*Table{t}, others...)

	if !unionColumns {
		for _, other := range others {
			if err := sameSchema(t, other); err != nil {
				return nil, err
			}
		}
	}

	// Union schema in first-seen order; for the identical-schema case this
	// is just the receiver's schema.
	var names []string
	types := make(map[string]arrow.DataType)
	for _, tbl := range all {
		for _, name := range tbl.order {
			dt := tbl.columns[name].DataType()
			if prev, seen := types[name]; seen {
				if prev.ID() != dt.ID() {
					return nil, errors.NewTypeMismatchError("Concat", name,
						fmt.Sprintf("column typed %s in one table and %s in another", prev.Name(), dt.Name()))
				}
				continue
			}
			types[name] = dt
			names = append(names, name)
		}
	}

	total := 0
	for _, tbl := range all {
		total += tbl.Len()
	}

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		b, err := newColumnBuilder(types[name], total)
		if err != nil {
			return nil, err
		}
		for _, tbl := range all {
			src, exists := tbl.columns[name]
			if !exists {
				for i := 0; i < tbl.Len(); i++ {
					b.appendNull()
				}
				continue
			}
			r := newColReader(src)
			for i := 0; i < r.len(); i++ {
				b.appendFrom(r, i)
			}
			r.release()
		}
		cols = append(cols, b.build(name, mem))
	}

	return newUnchecked(cols...), nil
}

// sameSchema checks that two tables agree on column names, order, and types.
func sameSchema(a, b *Table) error {
	if len(a.order) != len(b.order) {
		return errors.NewSchemaError("Concat", "",
			fmt.Sprintf("tables have %d and %d columns", len(a.order), len(b.order)))
	}
	for i, name := range a.order {
		if b.order[i] != name {
			return errors.NewSchemaError("Concat", name,
				fmt.Sprintf("column order differs: %q vs %q", name, b.order[i]))
		}
		if a.columns[name].DataType().ID() != b.columns[name].DataType().ID() {
			return errors.NewTypeMismatchError("Concat", name, "column types differ")
		}
	}
	return nil
}

// String returns a string representation of the Table
func (t *Table) String() string {
	if len(t.columns) == 0 {
		return "Table[empty]"
	}

	parts := []string{fmt.Sprintf("Table[%dx%d]", t.Len(), t.Width())}
	for _, name := range t.order {
		parts = append(parts, fmt.Sprintf("  %s: %s", name, t.columns[name].DataType().String()))
	}
	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (t *Table) Release() {
	for _, c := range t.columns {
		c.Release()
	}
}
