package table

import (
	"math"
	"sort"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// orderedRows is a right-side bucket sorted by ordering value, ascending;
// ties keep original row order.
type orderedRows struct {
	vals []float64
	rows []int
}

func buildOrderedRows(r colReader, rows []int) orderedRows {
	o := orderedRows{
		vals: make([]float64, 0, len(rows)),
		rows: make([]int, 0, len(rows)),
	}
	for _, row := range rows {
		if v, ok := r.float(row); ok {
			o.vals = append(o.vals, v)
			o.rows = append(o.rows, row)
		}
	}
	perm := make([]int, len(o.rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return o.vals[perm[a]] < o.vals[perm[b]] })
	vals := make([]float64, len(perm))
	rs := make([]int, len(perm))
	for i, p := range perm {
		vals[i] = o.vals[p]
		rs[i] = o.rows[p]
	}
	return orderedRows{vals: vals, rows: rs}
}

// nearest picks the single row whose ordering value is closest to target,
// honoring the direction restriction. An exact distance tie prefers the
// earlier (smaller) right value. Returns -1 when no candidate remains.
func (o orderedRows) nearest(target float64, dir RollDirection) int {
	if len(o.rows) == 0 {
		return -1
	}
	// First index with value >= target.
	i := sort.SearchFloat64s(o.vals, target)

	switch dir {
	case RollForward:
		if i == len(o.vals) {
			return -1
		}
		return o.rows[i]
	case RollBackward:
		if i < len(o.vals) && o.vals[i] == target {
			return o.rows[i]
		}
		if i == 0 {
			return -1
		}
		return o.rows[i-1]
	default:
		lo, hi := i-1, i
		switch {
		case hi == len(o.vals):
			return o.rows[lo]
		case lo < 0:
			return o.rows[hi]
		}
		dLo := math.Abs(target - o.vals[lo])
		dHi := math.Abs(o.vals[hi] - target)
		if dLo <= dHi {
			return o.rows[lo]
		}
		return o.rows[hi]
	}
}

// rollingJoin matches each left row to the single right row nearest along
// the designated ordering column, optionally scoped by equality clauses.
// Inner drops unmatched left rows; every other variant keeps them with null
// right columns.
func rollingJoin(left, right *Table, spec JoinSpec, split *splitClauses, mem memory.Allocator) (*Table, error) {
	lcolOrd, _ := left.Column(split.nearest.Left)
	rcolOrd, _ := right.Column(split.nearest.Right)
	leftOrd := newColReader(lcolOrd)
	rightOrd := newColReader(rcolOrd)
	defer leftOrd.release()
	defer rightOrd.release()

	var rightIndex *GroupIndex
	var probeReaders []colReader
	var whole orderedRows

	if len(split.eq) > 0 {
		rightKeys := make([]string, len(split.eq))
		for i, clause := range split.eq {
			rightKeys[i] = clause.Right
		}
		var err error
		rightIndex, err = NewGroupIndex(right, rightKeys)
		if err != nil {
			return nil, err
		}
		defer rightIndex.Release()

		probeReaders = make([]colReader, len(split.eq))
		for i, clause := range split.eq {
			lcol, _ := left.Column(clause.Left)
			probeReaders[i] = newColReader(lcol)
		}
		defer releaseReaders(probeReaders)
	} else {
		all := make([]int, right.Len())
		for i := range all {
			all[i] = i
		}
		whole = buildOrderedRows(rightOrd, all)
	}

	// Sorted buckets built lazily, one per probed group.
	bucketCache := make(map[int]orderedRows)

	var leftIdx, rightIdx []int
	for i := 0; i < left.Len(); i++ {
		match := -1

		target, ok := leftOrd.float(i)
		if ok {
			bucket := whole
			inBucket := true
			if rightIndex != nil {
				id, found := rightIndex.probe(probeReaders, i, spec.MatchNulls)
				if !found {
					inBucket = false
				} else {
					b, cached := bucketCache[id]
					if !cached {
						b = buildOrderedRows(rightOrd, rightIndex.Rows(id))
						bucketCache[id] = b
					}
					bucket = b
				}
			}
			if inBucket {
				match = bucket.nearest(target, spec.Direction)
			}
		}

		if match >= 0 {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, match)
		} else if spec.Type != InnerJoin {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, -1)
		}
	}

	return materializeJoin(left, right, leftIdx, rightIdx, spec.Suffix, mem)
}
