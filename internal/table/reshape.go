package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
)

// meltSupertype resolves the common type of the melted value columns.
// Int64 widens to float64 when mixed with float64; any other mix fails with
// a TypeMismatchError unless coerce requests widening everything printable
// to string.
func meltSupertype(t *Table, valueCols []string, coerce bool) (arrow.DataType, error) {
	var result arrow.DataType
	for _, name := range valueCols {
		col, exists := t.Column(name)
		if !exists {
			return nil, errors.NewKeyError("Melt", name)
		}
		dt := col.DataType()
		if result == nil {
			result = dt
			continue
		}
		if result.ID() == dt.ID() {
			continue
		}
		numericPair := (result.ID() == arrow.INT64 || result.ID() == arrow.FLOAT64) &&
			(dt.ID() == arrow.INT64 || dt.ID() == arrow.FLOAT64)
		if numericPair {
			result = arrow.PrimitiveTypes.Float64
			continue
		}
		if coerce {
			result = arrow.BinaryTypes.String
			continue
		}
		return nil, errors.NewTypeMismatchError("Melt", name,
			fmt.Sprintf("column type %s has no lossless common type with %s; pass coerce to stringify",
				dt.Name(), result.Name()))
	}
	return result, nil
}

// Melt reshapes wide to long: one output row per (original row, value
// column), stacked per value column. The output carries the id columns, a
// variable column holding the originating column name, and a value column
// widened to the common supertype of the melted columns.
func Melt(t *Table, idCols, valueCols []string, variableName, valueName string, coerce bool, mem memory.Allocator) (*Table, error) {
	if len(valueCols) == 0 {
		return nil, errors.NewSchemaError("Melt", "", "no value columns given")
	}
	for _, name := range idCols {
		if !t.HasColumn(name) {
			return nil, errors.NewKeyError("Melt", name)
		}
	}
	if variableName == "" {
		variableName = "variable"
	}
	if valueName == "" {
		valueName = "value"
	}

	super, err := meltSupertype(t, valueCols, coerce)
	if err != nil {
		return nil, err
	}

	n := t.Len()
	total := n * len(valueCols)

	// Id columns repeat once per value column, in stacking order.
	stacked := make([]int, 0, total)
	for range valueCols {
		for i := 0; i < n; i++ {
			stacked = append(stacked, i)
		}
	}

	cols := make([]Column, 0, len(idCols)+2)
	for _, name := range idCols {
		src, _ := t.Column(name)
		col, terr := takeColumn(src, name, stacked, mem)
		if terr != nil {
			return nil, terr
		}
		cols = append(cols, col)
	}

	variable := make([]string, 0, total)
	for _, name := range valueCols {
		for i := 0; i < n; i++ {
			variable = append(variable, name)
		}
	}
	cols = append(cols, series.New(variableName, variable, mem))

	vb, err := newColumnBuilder(super, total)
	if err != nil {
		return nil, err
	}
	for _, name := range valueCols {
		src, _ := t.Column(name)
		r := newColReader(src)
		for i := 0; i < n; i++ {
			if super.ID() == arrow.STRING && src.DataType().ID() != arrow.STRING {
				if r.isNull(i) {
					vb.appendNull()
				} else if aerr := vb.appendValue("Melt", fmt.Sprintf("%v", r.value(i))); aerr != nil {
					r.release()
					return nil, aerr
				}
				continue
			}
			vb.appendFrom(r, i)
		}
		r.release()
	}
	cols = append(cols, vb.build(valueName, mem))

	return New(cols...)
}

// Cast reshapes long to wide: one output row per distinct id tuple (in
// first-seen order), one output column per distinct value of the variable
// column (in first-seen order). Strict by default: a duplicate
// (id, variable) pair fails with a DuplicateKeyError; passing agg resolves
// duplicates by reduction instead. Missing combinations are null.
func Cast(t *Table, idCols []string, variableCol, valueCol string, agg *AggFunc, mem memory.Allocator) (*Table, error) {
	vcol, exists := t.Column(variableCol)
	if !exists {
		return nil, errors.NewKeyError("Cast", variableCol)
	}
	if vcol.DataType().ID() != arrow.STRING {
		return nil, errors.NewTypeMismatchError("Cast", variableCol, "variable column must be string-typed")
	}
	valcol, exists := t.Column(valueCol)
	if !exists {
		return nil, errors.NewKeyError("Cast", valueCol)
	}

	gi, err := NewGroupIndex(t, idCols)
	if err != nil {
		return nil, err
	}
	defer gi.Release()

	vr := newColReader(vcol)
	defer vr.release()
	valr := newColReader(valcol)
	defer valr.release()

	// Distinct variable values in first-seen order.
	var varNames []string
	varIdx := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		if vr.isNull(i) {
			return nil, errors.NewTypeMismatchError("Cast", variableCol, "variable column contains null")
		}
		name := vr.value(i).(string)
		if _, seen := varIdx[name]; !seen {
			varIdx[name] = len(varNames)
			varNames = append(varNames, name)
		}
	}
	for _, name := range varNames {
		for _, id := range idCols {
			if name == id {
				return nil, errors.NewNameCollisionError("Cast", name)
			}
		}
	}

	nGroups := gi.NumGroups()
	// cells[v][g] collects the source rows for (variable v, group g).
	cells := make([][][]int, len(varNames))
	for v := range cells {
		cells[v] = make([][]int, nGroups)
	}
	for row := 0; row < t.Len(); row++ {
		g := gi.rowGroup[row]
		v := varIdx[vr.value(row).(string)]
		cells[v][g] = append(cells[v][g], row)
		if agg == nil && len(cells[v][g]) > 1 {
			return nil, errors.NewDuplicateKeyError("Cast",
				fmt.Sprintf("duplicate id/variable pair for variable %q; pass an aggregation to resolve", varNames[v]))
		}
	}

	result, err := gi.KeyTable(mem)
	if err != nil {
		return nil, err
	}

	for v, name := range varNames {
		var col Column
		if agg == nil {
			col, err = castPickColumn(valr, valcol.DataType(), name, cells[v], mem)
		} else {
			col, err = castReduceColumn(valr, name, cells[v], *agg, mem)
		}
		if err != nil {
			return nil, err
		}
		result, err = result.WithColumn(col)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// castPickColumn materializes one wide column by copying the single source
// cell per group, null where the combination is absent.
func castPickColumn(valr colReader, dt arrow.DataType, name string, rowsPerGroup [][]int, mem memory.Allocator) (Column, error) {
	b, err := newColumnBuilder(dt, len(rowsPerGroup))
	if err != nil {
		return nil, err
	}
	for _, rows := range rowsPerGroup {
		if len(rows) == 0 {
			b.appendNull()
			continue
		}
		b.appendFrom(valr, rows[0])
	}
	return b.build(name, mem), nil
}

// castReduceColumn materializes one wide column by reducing the source cells
// per group. Requires a numeric value column.
func castReduceColumn(valr colReader, name string, rowsPerGroup [][]int, agg AggFunc, mem memory.Allocator) (Column, error) {
	if agg.isCount {
		out := make([]int64, len(rowsPerGroup))
		for g, rows := range rowsPerGroup {
			out[g] = int64(len(rows))
		}
		return series.New(name, out, mem), nil
	}

	out := make([]float64, len(rowsPerGroup))
	valid := make([]bool, len(rowsPerGroup))
	var scratch []float64
	for g, rows := range rowsPerGroup {
		scratch = scratch[:0]
		for _, row := range rows {
			if v, ok := valr.float(row); ok {
				scratch = append(scratch, v)
			} else if valr.isNull(row) {
				continue
			} else {
				return nil, errors.NewTypeMismatchError("Cast", name, "aggregated cast requires a numeric value column")
			}
		}
		if len(scratch) == 0 {
			continue
		}
		out[g] = agg.fn(scratch)
		valid[g] = true
	}
	return series.NewWithNulls(name, out, valid, mem), nil
}
