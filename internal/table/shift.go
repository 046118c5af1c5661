package table

import (
	"fmt"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/errors"
)

// ShiftUnit is a calendar interval for temporal lag/lead.
type ShiftUnit int

const (
	ShiftDay ShiftUnit = iota
	ShiftMonth
	ShiftQuarter
	ShiftYear
)

func (u ShiftUnit) String() string {
	switch u {
	case ShiftDay:
		return "day"
	case ShiftMonth:
		return "month"
	case ShiftQuarter:
		return "quarter"
	case ShiftYear:
		return "year"
	default:
		return "unknown"
	}
}

// ShiftSpec describes a calendar-interval lag or lead over a panel.
type ShiftSpec struct {
	TimeColumn  string
	ValueColumn string
	// PartitionBy optionally scopes the shift per entity; rows only ever
	// look up dates within their own partition.
	PartitionBy []string
	// Periods is the number of intervals to shift by; must be positive.
	Periods int
	Unit    ShiftUnit
	// Lead shifts forward in time instead of backward.
	Lead bool
	// As names the output column; empty derives lag_/lead_<n><unit>_<col>.
	As string
}

func (s ShiftSpec) outputName() string {
	if s.As != "" {
		return s.As
	}
	kind := "lag"
	if s.Lead {
		kind = "lead"
	}
	return fmt.Sprintf("%s_%d%s_%s", kind, s.Periods, s.Unit, s.ValueColumn)
}

// addCalendarMonths shifts t by n calendar months, clamping to the last
// valid day of the target month: Mar 31 minus one month is Feb 28 (or 29),
// never a normalized Mar 2/3. Clock time is preserved.
func addCalendarMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + n
	targetYear := year + total/12
	targetMonth := total % 12
	if targetMonth < 0 {
		targetMonth += 12
		targetYear--
	}
	m := time.Month(targetMonth + 1)
	if last := daysInMonth(targetYear, m); day > last {
		day = last
	}
	h, mi, sec := t.Clock()
	return time.Date(targetYear, m, day, h, mi, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// shiftTarget computes the date a row at d must look up for the given spec.
func shiftTarget(d time.Time, spec ShiftSpec) time.Time {
	n := spec.Periods
	if !spec.Lead {
		n = -n
	}
	switch spec.Unit {
	case ShiftDay:
		return d.AddDate(0, 0, n)
	case ShiftMonth:
		return addCalendarMonths(d, n)
	case ShiftQuarter:
		return addCalendarMonths(d, 3*n)
	default:
		return addCalendarMonths(d, 12*n)
	}
}

// Shift computes a calendar-interval lag or lead and returns the input table
// with the shifted column appended. For each row at date D the result holds
// the value of the partition row whose date exactly equals the shifted
// target date; irregular panels with a missing period yield null rather than
// silently falling back to a row offset. Lookups are exact, no
// interpolation.
func Shift(t *Table, spec ShiftSpec, mem memory.Allocator) (*Table, error) {
	const op = "Shift"

	if spec.Periods <= 0 {
		return nil, errors.NewSchemaError(op, "", "shift periods must be positive")
	}
	tcol, exists := t.Column(spec.TimeColumn)
	if !exists {
		return nil, errors.NewKeyError(op, spec.TimeColumn)
	}
	if tcol.DataType().ID() != arrow.TIMESTAMP {
		return nil, errors.NewTypeMismatchError(op, spec.TimeColumn, "time column must be temporal")
	}
	vcol, exists := t.Column(spec.ValueColumn)
	if !exists {
		return nil, errors.NewKeyError(op, spec.ValueColumn)
	}
	if t.HasColumn(spec.outputName()) {
		return nil, errors.NewNameCollisionError(op, spec.outputName())
	}

	// Partitions: one per entity, or a single partition spanning the table.
	var partitions [][]int
	if len(spec.PartitionBy) > 0 {
		gi, err := NewGroupIndex(t, spec.PartitionBy)
		if err != nil {
			return nil, err
		}
		for _, rows := range gi.groups {
			partitions = append(partitions, rows)
		}
		gi.Release()
	} else {
		all := make([]int, t.Len())
		for i := range all {
			all[i] = i
		}
		partitions = [][]int{all}
	}

	tr := newColReader(tcol)
	defer tr.release()

	// source[row] is the row holding the shifted value, -1 for no match.
	source := make([]int, t.Len())
	for i := range source {
		source[i] = -1
	}

	for _, rows := range partitions {
		// Sorted-by-date index per partition, then an exact date -> row map.
		byDate := make(map[int64]int, len(rows))
		sorted := append([]int(nil), rows...)
		sortRowsByTime(tr, sorted)
		for _, row := range sorted {
			d, ok := tr.timeValue(row)
			if !ok {
				continue
			}
			key := d.UnixMilli()
			if _, dup := byDate[key]; !dup {
				byDate[key] = row
			}
		}

		for _, row := range rows {
			d, ok := tr.timeValue(row)
			if !ok {
				continue
			}
			target := shiftTarget(d, spec)
			if src, found := byDate[target.UnixMilli()]; found {
				source[row] = src
			}
		}
	}

	shifted, err := takeColumn(vcol, spec.outputName(), source, mem)
	if err != nil {
		return nil, err
	}
	return t.WithColumn(shifted)
}

func sortRowsByTime(tr colReader, rows []int) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		av, aok := tr.float(a)
		bv, bok := tr.float(b)
		if !aok || !bok {
			return !aok && bok
		}
		return av < bv
	})
}
