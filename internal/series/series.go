// Package series provides typed, null-aware column storage backed by
// Apache Arrow arrays. A Series is immutable once built; table-level
// operations construct new Series rather than mutating in place.
package series

import (
	"fmt"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TimestampUnit is the resolution used for all temporal columns.
const TimestampUnit = arrow.Millisecond

// TimestampType returns the Arrow type used for temporal columns.
func TimestampType() *arrow.TimestampType {
	return &arrow.TimestampType{Unit: TimestampUnit, TimeZone: "UTC"}
}

// Series represents a typed data column with Apache Arrow backend
type Series[T any] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values with no nulls.
func New[T any](name string, values []T, mem memory.Allocator) *Series[T] {
	return NewWithNulls(name, values, nil, mem)
}

// NewWithNulls creates a new Series from a slice of values and a validity
// mask. valid may be nil (all values valid); otherwise it must have the same
// length as values and valid[i] == false marks row i as null. The value at a
// null position is ignored.
func NewWithNulls[T any](name string, values []T, valid []bool, mem memory.Allocator) *Series[T] {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		panic(fmt.Sprintf("series %q: validity mask length %d does not match value length %d",
			name, len(valid), len(values)))
	}

	isValid := func(i int) bool { return valid == nil || valid[i] }

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for i, val := range v {
			if isValid(i) {
				builder.Append(val)
			} else {
				builder.AppendNull()
			}
		}
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for i, val := range v {
			if isValid(i) {
				builder.Append(val)
			} else {
				builder.AppendNull()
			}
		}
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for i, val := range v {
			if isValid(i) {
				builder.Append(val)
			} else {
				builder.AppendNull()
			}
		}
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for i, val := range v {
			if isValid(i) {
				builder.Append(val)
			} else {
				builder.AppendNull()
			}
		}
		arr = builder.NewArray()
	case []time.Time:
		builder := array.NewTimestampBuilder(mem, TimestampType())
		defer builder.Release()
		for i, val := range v {
			if !isValid(i) {
				builder.AppendNull()
				continue
			}
			ts, err := arrow.TimestampFromTime(val.UTC(), TimestampUnit)
			if err != nil {
				builder.AppendNull()
				continue
			}
			builder.Append(ts)
		}
		arr = builder.NewArray()
	default:
		panic(fmt.Sprintf("unsupported type: %T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// Values returns the data as a Go slice. Null positions hold the zero value;
// use IsNull to distinguish them.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())

	switch arr := s.array.(type) {
	case *array.String:
		if values, ok := any(result).([]string); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Int64:
		if values, ok := any(result).([]int64); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Float64:
		if values, ok := any(result).([]float64); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Boolean:
		if values, ok := any(result).([]bool); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Timestamp:
		if values, ok := any(result).([]time.Time); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i).ToTime(TimestampUnit)
				}
			}
		}
	default:
		panic(fmt.Sprintf("unsupported array type: %T", arr))
	}

	return result
}

// Value returns the value at the given index. Out-of-range or null positions
// return the zero value.
func (s *Series[T]) Value(index int) T {
	var result T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return result
	}

	switch arr := s.array.(type) {
	case *array.String:
		if v, ok := any(&result).(*string); ok {
			*v = arr.Value(index)
		}
	case *array.Int64:
		if v, ok := any(&result).(*int64); ok {
			*v = arr.Value(index)
		}
	case *array.Float64:
		if v, ok := any(&result).(*float64); ok {
			*v = arr.Value(index)
		}
	case *array.Boolean:
		if v, ok := any(&result).(*bool); ok {
			*v = arr.Value(index)
		}
	case *array.Timestamp:
		if v, ok := any(&result).(*time.Time); ok {
			*v = arr.Value(index).ToTime(TimestampUnit)
		}
	}

	return result
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// NullCount returns the number of null positions in the series
func (s *Series[T]) NullCount() int {
	return s.array.NullN()
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d, nulls=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len(),
		s.NullCount())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}
