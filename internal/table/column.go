// Package table implements the in-memory tabular data engine: columnar
// tables, group indexes, aggregation, joins, reshaping, and calendar-aware
// temporal shifts. Columns are Arrow-backed series; all operations either
// return a new Table or carry an explicit in-place variant.
package table

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/exp/constraints"

	"github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
)

// Column provides a type-erased interface for a Series of any type.
type Column interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	NullCount() int
	String() string
	Array() arrow.Array
	Release()
}

// compareOrdered is the shared three-way comparison for ordered cell types.
func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// colReader wraps a retained Arrow array for repeated cell access. The caller
// owns the retained reference and must call release when done.
type colReader struct {
	name string
	arr  arrow.Array
}

func newColReader(c Column) colReader {
	return colReader{name: c.Name(), arr: c.Array()}
}

func (r colReader) release() {
	if r.arr != nil {
		r.arr.Release()
	}
}

func (r colReader) len() int {
	return r.arr.Len()
}

func (r colReader) isNull(i int) bool {
	return r.arr.IsNull(i)
}

// value returns the cell as a Go value; nil for null cells.
func (r colReader) value(i int) any {
	if r.arr.IsNull(i) {
		return nil
	}
	switch arr := r.arr.(type) {
	case *array.String:
		return arr.Value(i)
	case *array.Int64:
		return arr.Value(i)
	case *array.Float64:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	case *array.Timestamp:
		return arr.Value(i).ToTime(series.TimestampUnit)
	default:
		return nil
	}
}

// float returns the cell coerced to float64. ok is false for nulls and
// non-numeric cells. Timestamps coerce to epoch milliseconds so that a single
// numeric ordering covers both numeric and temporal columns.
func (r colReader) float(i int) (float64, bool) {
	if r.arr.IsNull(i) {
		return 0, false
	}
	switch arr := r.arr.(type) {
	case *array.Int64:
		return float64(arr.Value(i)), true
	case *array.Float64:
		return arr.Value(i), true
	case *array.Timestamp:
		return float64(arr.Value(i)), true
	default:
		return 0, false
	}
}

// timeValue returns the cell as a time.Time for timestamp columns.
func (r colReader) timeValue(i int) (time.Time, bool) {
	arr, ok := r.arr.(*array.Timestamp)
	if !ok || arr.IsNull(i) {
		return time.Time{}, false
	}
	return arr.Value(i).ToTime(series.TimestampUnit), true
}

// Key-encoding tag bytes. Each cell contributes a tag plus a fixed or
// length-delimited payload so distinct tuples never collide byte-wise.
// Int64 and float64 cells share one tag and encode as float64 bits: equal()
// treats 1 == 1.0 across the two kinds, and a probe-side hash must land in
// the same bucket for that match to be found.
const (
	keyTagNull   = 0x00
	keyTagString = 0x01
	keyTagNumber = 0x02
	keyTagBool   = 0x03
	keyTagTime   = 0x04
)

// appendKey appends a type-tagged encoding of cell i to buf. Null encodes as
// a distinct tag, so two nulls encode equal (self-equal sentinel for
// grouping).
func (r colReader) appendKey(buf []byte, i int) []byte {
	if r.arr.IsNull(i) {
		return append(buf, keyTagNull)
	}
	switch arr := r.arr.(type) {
	case *array.String:
		v := arr.Value(i)
		buf = append(buf, keyTagString)
		buf = appendUvarint(buf, uint64(len(v)))
		return append(buf, v...)
	case *array.Int64:
		buf = append(buf, keyTagNumber)
		return appendFloat64(buf, float64(arr.Value(i)))
	case *array.Float64:
		buf = append(buf, keyTagNumber)
		return appendFloat64(buf, arr.Value(i))
	case *array.Boolean:
		buf = append(buf, keyTagBool)
		if arr.Value(i) {
			return append(buf, 1)
		}
		return append(buf, 0)
	case *array.Timestamp:
		buf = append(buf, keyTagTime)
		return appendUint64(buf, uint64(arr.Value(i)))
	default:
		return append(buf, keyTagNull)
	}
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendFloat64(buf []byte, f float64) []byte {
	// Normalize -0 so it groups with +0.
	if f == 0 {
		f = 0
	}
	return appendUint64(buf, math.Float64bits(f))
}

// equal reports whether cell i of r equals cell j of other. Nulls are
// self-equal here; join probing handles the null-never-matches default before
// calling equal.
func (r colReader) equal(i int, other colReader, j int) bool {
	in, jn := r.arr.IsNull(i), other.arr.IsNull(j)
	if in || jn {
		return in && jn
	}
	switch a := r.arr.(type) {
	case *array.String:
		b, ok := other.arr.(*array.String)
		return ok && a.Value(i) == b.Value(j)
	case *array.Int64:
		switch b := other.arr.(type) {
		case *array.Int64:
			return a.Value(i) == b.Value(j)
		case *array.Float64:
			return float64(a.Value(i)) == b.Value(j)
		}
		return false
	case *array.Float64:
		switch b := other.arr.(type) {
		case *array.Float64:
			return a.Value(i) == b.Value(j)
		case *array.Int64:
			return a.Value(i) == float64(b.Value(j))
		}
		return false
	case *array.Boolean:
		b, ok := other.arr.(*array.Boolean)
		return ok && a.Value(i) == b.Value(j)
	case *array.Timestamp:
		b, ok := other.arr.(*array.Timestamp)
		return ok && a.Value(i) == b.Value(j)
	default:
		return false
	}
}

// compare performs a three-way comparison between cell i of r and cell j of
// other. Null sorts before any value; two nulls compare equal. Columns must
// have been validated as comparable beforehand.
func (r colReader) compare(i int, other colReader, j int) int {
	in, jn := r.arr.IsNull(i), other.arr.IsNull(j)
	switch {
	case in && jn:
		return 0
	case in:
		return -1
	case jn:
		return 1
	}
	switch a := r.arr.(type) {
	case *array.String:
		if b, ok := other.arr.(*array.String); ok {
			return compareOrdered(a.Value(i), b.Value(j))
		}
	case *array.Boolean:
		if b, ok := other.arr.(*array.Boolean); ok {
			av, bv := 0, 0
			if a.Value(i) {
				av = 1
			}
			if b.Value(j) {
				bv = 1
			}
			return compareOrdered(av, bv)
		}
	default:
		av, aok := r.float(i)
		bv, bok := other.float(j)
		if aok && bok {
			return compareOrdered(av, bv)
		}
	}
	return 0
}

// orderableType reports whether a column type supports ordering.
func orderableType(id arrow.Type) bool {
	switch id {
	case arrow.STRING, arrow.INT64, arrow.FLOAT64, arrow.BOOL, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}

// comparableWith reports whether cells of r can be ordered against cells of
// other (used to validate sort keys and inequality join clauses).
func (r colReader) comparableWith(other colReader) bool {
	aid, bid := r.arr.DataType().ID(), other.arr.DataType().ID()
	numeric := func(id arrow.Type) bool {
		return id == arrow.INT64 || id == arrow.FLOAT64 || id == arrow.TIMESTAMP
	}
	if numeric(aid) && numeric(bid) {
		// Timestamps only order against timestamps.
		return (aid == arrow.TIMESTAMP) == (bid == arrow.TIMESTAMP)
	}
	return aid == bid
}

// columnBuilder accumulates cells of one output column and materializes a
// Column through the series constructors, the same route every other
// operation uses.
type columnBuilder struct {
	dtype arrow.DataType
	strs  []string
	ints  []int64
	flts  []float64
	bools []bool
	times []time.Time
	valid []bool
}

func newColumnBuilder(dtype arrow.DataType, capacity int) (*columnBuilder, error) {
	b := &columnBuilder{dtype: dtype, valid: make([]bool, 0, capacity)}
	switch dtype.ID() {
	case arrow.STRING:
		b.strs = make([]string, 0, capacity)
	case arrow.INT64:
		b.ints = make([]int64, 0, capacity)
	case arrow.FLOAT64:
		b.flts = make([]float64, 0, capacity)
	case arrow.BOOL:
		b.bools = make([]bool, 0, capacity)
	case arrow.TIMESTAMP:
		b.times = make([]time.Time, 0, capacity)
	default:
		// Operations validate kinds before building, so reaching this is a
		// bug in the caller, not bad input.
		return nil, errors.NewInternalError("build", fmt.Errorf("unsupported column type %s", dtype.Name()))
	}
	return b, nil
}

func (b *columnBuilder) appendNull() {
	b.valid = append(b.valid, false)
	switch b.dtype.ID() {
	case arrow.STRING:
		b.strs = append(b.strs, "")
	case arrow.INT64:
		b.ints = append(b.ints, 0)
	case arrow.FLOAT64:
		b.flts = append(b.flts, 0)
	case arrow.BOOL:
		b.bools = append(b.bools, false)
	case arrow.TIMESTAMP:
		b.times = append(b.times, time.Time{})
	}
}

// appendFrom copies cell i of r, preserving null state. The source cell must
// have the builder's type; a negative index appends null (join fill).
func (b *columnBuilder) appendFrom(r colReader, i int) {
	if i < 0 || i >= r.len() || r.isNull(i) {
		b.appendNull()
		return
	}
	b.valid = append(b.valid, true)
	switch arr := r.arr.(type) {
	case *array.String:
		b.strs = append(b.strs, arr.Value(i))
	case *array.Int64:
		if b.dtype.ID() == arrow.FLOAT64 {
			b.flts = append(b.flts, float64(arr.Value(i)))
		} else {
			b.ints = append(b.ints, arr.Value(i))
		}
	case *array.Float64:
		b.flts = append(b.flts, arr.Value(i))
	case *array.Boolean:
		b.bools = append(b.bools, arr.Value(i))
	case *array.Timestamp:
		b.times = append(b.times, arr.Value(i).ToTime(series.TimestampUnit))
	}
}

// appendValue appends a Go value; nil appends null. The value type must match
// the builder's type, except int64 into a float64 builder which widens.
func (b *columnBuilder) appendValue(op string, v any) error {
	if v == nil {
		b.appendNull()
		return nil
	}
	switch b.dtype.ID() {
	case arrow.STRING:
		s, ok := v.(string)
		if !ok {
			return errors.NewTypeMismatchError(op, "", "expected string value")
		}
		b.strs = append(b.strs, s)
	case arrow.INT64:
		n, ok := v.(int64)
		if !ok {
			return errors.NewTypeMismatchError(op, "", "expected int64 value")
		}
		b.ints = append(b.ints, n)
	case arrow.FLOAT64:
		switch n := v.(type) {
		case float64:
			b.flts = append(b.flts, n)
		case int64:
			b.flts = append(b.flts, float64(n))
		default:
			return errors.NewTypeMismatchError(op, "", "expected numeric value")
		}
	case arrow.BOOL:
		bv, ok := v.(bool)
		if !ok {
			return errors.NewTypeMismatchError(op, "", "expected bool value")
		}
		b.bools = append(b.bools, bv)
	case arrow.TIMESTAMP:
		tv, ok := v.(time.Time)
		if !ok {
			return errors.NewTypeMismatchError(op, "", "expected time.Time value")
		}
		b.times = append(b.times, tv)
	}
	b.valid = append(b.valid, true)
	return nil
}

func (b *columnBuilder) build(name string, mem memory.Allocator) Column {
	switch b.dtype.ID() {
	case arrow.STRING:
		return series.NewWithNulls(name, b.strs, b.valid, mem)
	case arrow.INT64:
		return series.NewWithNulls(name, b.ints, b.valid, mem)
	case arrow.FLOAT64:
		return series.NewWithNulls(name, b.flts, b.valid, mem)
	case arrow.BOOL:
		return series.NewWithNulls(name, b.bools, b.valid, mem)
	default:
		return series.NewWithNulls(name, b.times, b.valid, mem)
	}
}

// keysEqual reports tuple equality between row i over rs and row j over
// others, with the null-self-equal convention.
func keysEqual(rs []colReader, i int, others []colReader, j int) bool {
	for k := range rs {
		if !rs[k].equal(i, others[k], j) {
			return false
		}
	}
	return true
}

// encodeKey writes the type-tagged key tuple for row i into buf.
func encodeKey(buf []byte, rs []colReader, i int) []byte {
	for _, r := range rs {
		buf = r.appendKey(buf, i)
	}
	return buf
}
