package table

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/config"
	"github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/parallel"
	"github.com/panelkit/panelkit/internal/series"
)

// AggFunc is a named reduction over the non-null float64 view of a group.
// Count is special-cased: it never inspects values and works on any column
// type.
type AggFunc struct {
	name    string
	isCount bool
	fn      func(vals []float64) float64
}

// Name returns the function name used in derived output column names.
func (f AggFunc) Name() string { return f.name }

// Sum reduces a group to the sum of its values.
func Sum() AggFunc {
	return AggFunc{name: "sum", fn: func(vals []float64) float64 {
		var s float64
		for _, v := range vals {
			s += v
		}
		return s
	}}
}

// Mean reduces a group to the arithmetic mean of its values.
func Mean() AggFunc {
	return AggFunc{name: "mean", fn: func(vals []float64) float64 {
		var s float64
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals))
	}}
}

// Min reduces a group to its smallest value.
func Min() AggFunc {
	return AggFunc{name: "min", fn: func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	}}
}

// Max reduces a group to its largest value.
func Max() AggFunc {
	return AggFunc{name: "max", fn: func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}}
}

// Median reduces a group to its median.
func Median() AggFunc {
	f := Quantile(0.5)
	f.name = "median"
	return f
}

// Quantile reduces a group to the q-quantile of its values, with linear
// interpolation between order statistics.
func Quantile(q float64) AggFunc {
	return AggFunc{name: fmt.Sprintf("q%g", q), fn: func(vals []float64) float64 {
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		if q <= 0 {
			return sorted[0]
		}
		if q >= 1 {
			return sorted[len(sorted)-1]
		}
		pos := q * float64(len(sorted)-1)
		lo := int(pos)
		frac := pos - float64(lo)
		if lo+1 >= len(sorted) {
			return sorted[lo]
		}
		return sorted[lo]*(1-frac) + sorted[lo+1]*frac
	}}
}

// Count reduces a group to its row count. With SkipNulls set it counts only
// non-null cells.
func Count() AggFunc {
	return AggFunc{name: "count", isCount: true}
}

// Agg wraps a caller-supplied reduction function under the given name.
func Agg(name string, fn func(vals []float64) float64) AggFunc {
	return AggFunc{name: name, fn: fn}
}

// AggSpec pairs a source column with a reduction and an optional output
// name. An empty As derives the name as <func>_<column>.
type AggSpec struct {
	Column string
	Func   AggFunc
	As     string
}

func (s AggSpec) outputName() string {
	if s.As != "" {
		return s.As
	}
	return fmt.Sprintf("%s_%s", s.Func.name, s.Column)
}

// AggOptions controls null handling during reduction. With the default
// (SkipNulls false), a group containing any null reduces to null; mean of
// data containing null is null. SkipNulls drops null cells before reducing;
// a group left empty reduces to null (Count reduces to 0).
type AggOptions struct {
	SkipNulls bool
}

// groupScalars holds per-group reduction results aligned with group order.
type groupScalars struct {
	values []float64
	valid  []bool
	counts []int64 // set for Count reductions
}

// reduceGroups runs one reduction over every group of one column.
func reduceGroups(gi *GroupIndex, column string, fn AggFunc, opts AggOptions) (*groupScalars, error) {
	col, exists := gi.table.Column(column)
	if !exists {
		return nil, errors.NewKeyError("Reduce", column)
	}

	r := newColReader(col)
	defer r.release()

	if fn.isCount {
		counts := make([]int64, gi.NumGroups())
		for id, rows := range gi.Groups() {
			if opts.SkipNulls {
				var n int64
				for _, row := range rows {
					if !r.isNull(row) {
						n++
					}
				}
				counts[id] = n
			} else {
				counts[id] = int64(len(rows))
			}
		}
		return &groupScalars{counts: counts}, nil
	}

	switch col.DataType().ID() {
	case arrow.INT64, arrow.FLOAT64:
	default:
		return nil, errors.NewTypeMismatchError("Reduce", column, "reduction requires a numeric column")
	}

	out := &groupScalars{
		values: make([]float64, gi.NumGroups()),
		valid:  make([]bool, gi.NumGroups()),
	}
	var scratch []float64
	for id, rows := range gi.Groups() {
		scratch = scratch[:0]
		sawNull := false
		for _, row := range rows {
			v, ok := r.float(row)
			if !ok {
				sawNull = true
				if !opts.SkipNulls {
					break
				}
				continue
			}
			scratch = append(scratch, v)
		}
		if (sawNull && !opts.SkipNulls) || len(scratch) == 0 {
			continue // stays null
		}
		out.values[id] = fn.fn(scratch)
		out.valid[id] = true
	}
	return out, nil
}

func (s *groupScalars) column(name string, mem memory.Allocator) Column {
	if s.counts != nil {
		return series.New(name, s.counts, mem)
	}
	return series.NewWithNulls(name, s.values, s.valid, mem)
}

// Reduce applies one reduction to one column, returning per-group scalars in
// group order as a Column.
func Reduce(gi *GroupIndex, column string, fn AggFunc, opts AggOptions, mem memory.Allocator) (Column, error) {
	scalars, err := reduceGroups(gi, column, fn, opts)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_%s", fn.name, column)
	return scalars.column(name, mem), nil
}

// ReduceMany applies a list of (column, function) pairs over one group
// index, producing a Table with one row per group: the key columns followed
// by one column per spec. Output names are validated for collisions, against
// each other and against the key columns, before any reduction runs.
// Multiple functions over one column and one function over multiple columns
// are both expressed as repeated specs.
func ReduceMany(gi *GroupIndex, specs []AggSpec, opts AggOptions, mem memory.Allocator) (*Table, error) {
	if len(specs) == 0 {
		return nil, errors.NewSchemaError("ReduceMany", "", "no aggregation specs given")
	}

	seen := make(map[string]bool, len(specs)+len(gi.keyCols))
	for _, key := range gi.keyCols {
		seen[key] = true
	}
	for _, spec := range specs {
		name := spec.outputName()
		if seen[name] {
			return nil, errors.NewNameCollisionError("ReduceMany", name)
		}
		seen[name] = true
		if !gi.table.HasColumn(spec.Column) {
			return nil, errors.NewKeyError("ReduceMany", spec.Column)
		}
	}

	result, err := gi.KeyTable(mem)
	if err != nil {
		return nil, err
	}

	aggCols := make([]Column, len(specs))
	if len(specs) > 1 && gi.table.Len() >= config.GetConfig().ParallelThreshold {
		pool := parallel.NewWorkerPool(config.GetConfig().WorkerPoolSize)
		defer pool.Close()
		errs := make([]error, len(specs))
		parallel.ProcessIndexed(pool, specs, func(i int, spec AggSpec) struct{} {
			scalars, rerr := reduceGroups(gi, spec.Column, spec.Func, opts)
			if rerr != nil {
				errs[i] = rerr
				return struct{}{}
			}
			aggCols[i] = scalars.column(spec.outputName(), mem)
			return struct{}{}
		})
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
	} else {
		for i, spec := range specs {
			scalars, rerr := reduceGroups(gi, spec.Column, spec.Func, opts)
			if rerr != nil {
				return nil, rerr
			}
			aggCols[i] = scalars.column(spec.outputName(), mem)
		}
	}

	for _, col := range aggCols {
		result, err = result.WithColumn(col)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Transform broadcasts each group's reduced value back to every row of the
// group. The output column has exactly the input row count and original row
// order, regardless of group iteration order.
func Transform(gi *GroupIndex, column string, fn AggFunc, opts AggOptions, as string, mem memory.Allocator) (Column, error) {
	scalars, err := reduceGroups(gi, column, fn, opts)
	if err != nil {
		return nil, err
	}
	if as == "" {
		as = fmt.Sprintf("%s_%s", fn.name, column)
	}

	n := len(gi.rowGroup)
	if scalars.counts != nil {
		out := make([]int64, n)
		for row, id := range gi.rowGroup {
			out[row] = scalars.counts[id]
		}
		return series.New(as, out, mem), nil
	}

	out := make([]float64, n)
	valid := make([]bool, n)
	if n >= config.GetConfig().ParallelThreshold {
		pool := parallel.NewWorkerPool(config.GetConfig().WorkerPoolSize)
		defer pool.Close()
		chunks := pool.Chunks(n, config.GetConfig().ChunkSize)
		parallel.Process(pool, chunks, func(c [2]int) struct{} {
			for row := c[0]; row < c[1]; row++ {
				id := gi.rowGroup[row]
				out[row] = scalars.values[id]
				valid[row] = scalars.valid[id]
			}
			return struct{}{}
		})
	} else {
		for row, id := range gi.rowGroup {
			out[row] = scalars.values[id]
			valid[row] = scalars.valid[id]
		}
	}
	return series.NewWithNulls(as, out, valid, mem), nil
}
