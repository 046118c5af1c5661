package table

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// rangeJoin matches each left row against every right row satisfying all
// inequality clauses, intersected with the equality clauses when present.
// Candidates come from the equality buckets (or the whole right table when
// the join has no equality clause); each bucket is scanned linearly. This
// scan is the complexity-sensitive step: fine for moderate bucket sizes, an
// interval tree would cut it further.
//
// Inner drops unmatched left rows; Left and Outer emit them with null right
// columns; Right and Outer additionally emit unmatched right rows.
func rangeJoin(left, right *Table, spec JoinSpec, split *splitClauses, mem memory.Allocator) (*Table, error) {
	var rightIndex *GroupIndex
	var probeReaders []colReader
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
	}

	ineqLeft, ineqRight := clauseReaders(left, right, split.ineq)
	defer releaseReaders(ineqLeft)
	defer releaseReaders(ineqRight)

	allRight := make([]int, right.Len())
	for i := range allRight {
		allRight[i] = i
	}

	var leftIdx, rightIdx []int
	rightMatched := make([]bool, right.Len())

	for i := 0; i < left.Len(); i++ {
		candidates := allRight
		if rightIndex != nil {
			id, ok := rightIndex.probe(probeReaders, i, spec.MatchNulls)
			if !ok {
				candidates = nil
			} else {
				candidates = rightIndex.Rows(id)
			}
		}

		matched := false
		for _, j := range candidates {
			if !ineqHold(split.ineq, ineqLeft, ineqRight, i, j) {
				continue
			}
			matched = true
			rightMatched[j] = true
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
		if !matched && (spec.Type == LeftJoin || spec.Type == OuterJoin) {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, -1)
		}
	}

	if spec.Type == RightJoin || spec.Type == OuterJoin {
		for j, matched := range rightMatched {
			if !matched {
				leftIdx = append(leftIdx, -1)
				rightIdx = append(rightIdx, j)
			}
		}
	}

	return materializeJoin(left, right, leftIdx, rightIdx, spec.Suffix, mem)
}

// ineqHold evaluates every inequality clause for the pair (left row i, right
// row j). A null operand fails its clause.
func ineqHold(clauses []JoinClause, lrs, rrs []colReader, i, j int) bool {
	for k, clause := range clauses {
		if lrs[k].isNull(i) || rrs[k].isNull(j) {
			return false
		}
		c := lrs[k].compare(i, rrs[k], j)
		switch clause.Op {
		case OpLe:
			if c > 0 {
				return false
			}
		case OpGe:
			if c < 0 {
				return false
			}
		}
	}
	return true
}
