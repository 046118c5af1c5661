package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
)

// Kind enumerates the cell types the engine stores. The I/O layer deals in
// kinds; Arrow types stay internal.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

func (k Kind) dataType() arrow.DataType {
	switch k {
	case KindString:
		return arrow.BinaryTypes.String
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return series.TimestampType()
	}
}

// ColumnSpec names and types one ingested column.
type ColumnSpec struct {
	Name string
	Kind Kind
}

// FromRows is the sole ingestion entry point: the I/O layer parses whatever
// source format it handles and delivers uniform rows here. A nil cell is
// null. Ragged rows fail with a SchemaError, mistyped cells with a
// TypeMismatchError; both name the offending column.
func FromRows(specs []ColumnSpec, rows [][]any, mem memory.Allocator) (*Table, error) {
	const op = "FromRows"

	if len(specs) == 0 {
		return nil, errors.NewSchemaError(op, "", "no column specs given")
	}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, errors.NewSchemaError(op, spec.Name, "duplicate column name")
		}
		seen[spec.Name] = true
	}

	builders := make([]*columnBuilder, len(specs))
	for i, spec := range specs {
		b, err := newColumnBuilder(spec.Kind.dataType(), len(rows))
		if err != nil {
			return nil, err
		}
		builders[i] = b
	}

	for rowNum, row := range rows {
		if len(row) != len(specs) {
			return nil, errors.NewSchemaError(op, "",
				fmt.Sprintf("row %d has %d cells, want %d", rowNum, len(row), len(specs)))
		}
		for i, cell := range row {
			if err := builders[i].appendValue(op, cell); err != nil {
				return nil, errors.NewTypeMismatchError(op, specs[i].Name,
					fmt.Sprintf("row %d: %v", rowNum, err))
			}
		}
	}

	cols := make([]Column, len(specs))
	for i, spec := range specs {
		cols[i] = builders[i].build(spec.Name, mem)
	}
	return New(cols...)
}

// Rows is the sole egress entry point: it materializes the table as rows of
// Go values for the I/O layer to serialize. Null cells are nil.
func (t *Table) Rows() [][]any {
	readers := make([]colReader, 0, len(t.order))
	for _, name := range t.order {
		readers = append(readers, newColReader(t.columns[name]))
	}
	defer releaseReaders(readers)

	out := make([][]any, t.Len())
	for i := range out {
		row := make([]any, len(readers))
		for j, r := range readers {
			row[j] = r.value(i)
		}
		out[i] = row
	}
	return out
}

// Schema reports each column's name and kind in order.
func (t *Table) Schema() []ColumnSpec {
	specs := make([]ColumnSpec, 0, len(t.order))
	for _, name := range t.order {
		var k Kind
		switch t.columns[name].DataType().ID() {
		case arrow.STRING:
			k = KindString
		case arrow.INT64:
			k = KindInt64
		case arrow.FLOAT64:
			k = KindFloat64
		case arrow.BOOL:
			k = KindBool
		case arrow.TIMESTAMP:
			k = KindTime
		}
		specs = append(specs, ColumnSpec{Name: name, Kind: k})
	}
	return specs
}
