package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/config"
	"github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/parallel"
)

// JoinType selects the join variant.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	OuterJoin
	SemiJoin
	AntiJoin
	CrossJoin
)

func (jt JoinType) String() string {
	switch jt {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case RightJoin:
		return "right"
	case OuterJoin:
		return "outer"
	case SemiJoin:
		return "semi"
	case AntiJoin:
		return "anti"
	case CrossJoin:
		return "cross"
	default:
		return "unknown"
	}
}

// JoinOp is a predicate clause operator.
type JoinOp int

const (
	// OpEq matches rows with equal key cells.
	OpEq JoinOp = iota
	// OpLe requires left cell <= right cell.
	OpLe
	// OpGe requires left cell >= right cell.
	OpGe
	// OpNearest designates the rolling dimension: the single right row whose
	// cell is closest to the left's is matched. At most one per join.
	OpNearest
)

// JoinClause is one predicate clause (left column, operator, right column).
// Clauses combine conjunctively.
type JoinClause struct {
	Left  string
	Op    JoinOp
	Right string
}

// RollDirection restricts rolling-join candidates relative to the left value.
type RollDirection int

const (
	// RollNearest allows candidates on either side of the left value.
	RollNearest RollDirection = iota
	// RollForward restricts candidates to right >= left.
	RollForward
	// RollBackward restricts candidates to right <= left.
	RollBackward
)

// JoinSpec describes a join between two tables.
type JoinSpec struct {
	Type JoinType
	On   []JoinClause
	// MatchNulls opts into null-equals-null key matching. The default
	// mirrors SQL: a null key cell matches nothing.
	MatchNulls bool
	// Direction applies to the OpNearest clause, if any.
	Direction RollDirection
	// Suffix disambiguates right-side column names that collide with left
	// ones. Defaults to "_right".
	Suffix string
}

// splitClauses partitions the clause list by operator kind.
type splitClauses struct {
	eq      []JoinClause
	ineq    []JoinClause
	nearest *JoinClause
}

// validateJoin checks the specification against both schemas and splits the
// clauses. Every failure carries the offending column or clause.
func validateJoin(left, right *Table, spec JoinSpec) (*splitClauses, error) {
	const op = "Join"

	if spec.Type == CrossJoin {
		if len(spec.On) != 0 {
			return nil, errors.NewAmbiguousJoinError(op, "cross join takes no predicate clauses")
		}
		return &splitClauses{}, nil
	}
	if len(spec.On) == 0 {
		return nil, errors.NewAmbiguousJoinError(op, "join requires at least one predicate clause")
	}

	var split splitClauses
	for _, clause := range spec.On {
		lcol, exists := left.Column(clause.Left)
		if !exists {
			return nil, errors.NewSchemaError(op, clause.Left, "join column missing from left table")
		}
		rcol, exists := right.Column(clause.Right)
		if !exists {
			return nil, errors.NewSchemaError(op, clause.Right, "join column missing from right table")
		}

		lr, rr := newColReader(lcol), newColReader(rcol)
		comparable := lr.comparableWith(rr)
		lr.release()
		rr.release()

		switch clause.Op {
		case OpEq:
			if !comparable {
				return nil, errors.NewSchemaError(op, clause.Left,
					fmt.Sprintf("cannot compare with right column %q of different type", clause.Right))
			}
			split.eq = append(split.eq, clause)
		case OpLe, OpGe:
			if !comparable {
				return nil, errors.NewSchemaError(op, clause.Left,
					fmt.Sprintf("cannot order against right column %q", clause.Right))
			}
			split.ineq = append(split.ineq, clause)
		case OpNearest:
			if split.nearest != nil {
				return nil, errors.NewAmbiguousJoinError(op, "join specifies more than one nearest clause")
			}
			if !numericType(lcol) || !numericType(rcol) || !comparable {
				return nil, errors.NewSchemaError(op, clause.Left,
					"nearest clause requires numeric or temporal columns on both sides")
			}
			c := clause
			split.nearest = &c
		default:
			return nil, errors.NewAmbiguousJoinError(op, "unknown clause operator")
		}
	}

	if split.nearest != nil && len(split.ineq) > 0 {
		return nil, errors.NewAmbiguousJoinError(op, "nearest clause cannot combine with inequality clauses")
	}
	switch spec.Type {
	case SemiJoin, AntiJoin:
		if split.nearest != nil || len(split.ineq) > 0 {
			return nil, errors.NewAmbiguousJoinError(op, "semi and anti joins take equality clauses only")
		}
	}
	return &split, nil
}

func numericType(c Column) bool {
	switch c.DataType().ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}

// Join joins two tables under the given specification and returns a new
// Table. Neither input is modified.
func Join(left, right *Table, spec JoinSpec, mem memory.Allocator) (*Table, error) {
	split, err := validateJoin(left, right, spec)
	if err != nil {
		return nil, err
	}

	switch {
	case spec.Type == CrossJoin:
		return crossJoin(left, right, spec, mem)
	case split.nearest != nil:
		return rollingJoin(left, right, spec, split, mem)
	case len(split.ineq) > 0:
		return rangeJoin(left, right, spec, split, mem)
	default:
		return equiJoin(left, right, spec, split, mem)
	}
}

// clauseReaders opens aligned readers over the left and right columns of a
// clause subset. Callers release both slices.
func clauseReaders(left, right *Table, clauses []JoinClause) (lrs, rrs []colReader) {
	for _, clause := range clauses {
		lcol, _ := left.Column(clause.Left)
		rcol, _ := right.Column(clause.Right)
		lrs = append(lrs, newColReader(lcol))
		rrs = append(rrs, newColReader(rcol))
	}
	return lrs, rrs
}

func releaseReaders(rs []colReader) {
	for _, r := range rs {
		r.release()
	}
}

// equiJoin implements inner/left/right/outer/semi/anti equality joins with a
// hash-bucketed right side.
func equiJoin(left, right *Table, spec JoinSpec, split *splitClauses, mem memory.Allocator) (*Table, error) {
	rightKeys := make([]string, len(split.eq))
	for i, clause := range split.eq {
		rightKeys[i] = clause.Right
	}
	rightIndex, err := NewGroupIndex(right, rightKeys)
	if err != nil {
		return nil, err
	}
	defer rightIndex.Release()

	lrs := make([]colReader, len(split.eq))
	for i, clause := range split.eq {
		lcol, _ := left.Column(clause.Left)
		lrs[i] = newColReader(lcol)
	}
	defer releaseReaders(lrs)

	var leftIdx, rightIdx []int
	rightMatched := make([]bool, right.Len())

	for i := 0; i < left.Len(); i++ {
		id, ok := rightIndex.probe(lrs, i, spec.MatchNulls)
		switch spec.Type {
		case SemiJoin:
			if ok {
				leftIdx = append(leftIdx, i)
			}
		case AntiJoin:
			if !ok {
				leftIdx = append(leftIdx, i)
			}
		default:
			if ok {
				for _, r := range rightIndex.Rows(id) {
					leftIdx = append(leftIdx, i)
					rightIdx = append(rightIdx, r)
					rightMatched[r] = true
				}
			} else if spec.Type == LeftJoin || spec.Type == OuterJoin {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
		}
	}

	switch spec.Type {
	case SemiJoin, AntiJoin:
		return left.take(leftIdx, mem)
	case RightJoin, OuterJoin:
		for r, matched := range rightMatched {
			if !matched {
				leftIdx = append(leftIdx, -1)
				rightIdx = append(rightIdx, r)
			}
		}
	}

	return materializeJoin(left, right, leftIdx, rightIdx, spec.Suffix, mem)
}

// crossJoin pairs every left row with every right row, no deduplication.
func crossJoin(left, right *Table, spec JoinSpec, mem memory.Allocator) (*Table, error) {
	n := left.Len() * right.Len()
	leftIdx := make([]int, 0, n)
	rightIdx := make([]int, 0, n)
	for i := 0; i < left.Len(); i++ {
		for j := 0; j < right.Len(); j++ {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}
	return materializeJoin(left, right, leftIdx, rightIdx, spec.Suffix, mem)
}

// gatherSpec pairs one source column with its output name and the index
// vector it gathers through.
type gatherSpec struct {
	src  Column
	name string
	idx  []int
}

// materializeJoin gathers the paired row indices into the output table:
// every left column followed by every right column, right names suffixed on
// collision. A -1 index materializes as null.
func materializeJoin(left, right *Table, leftIdx, rightIdx []int, suffix string, mem memory.Allocator) (*Table, error) {
	if suffix == "" {
		suffix = "_right"
	}

	gathers := make([]gatherSpec, 0, left.Width()+right.Width())
	for _, name := range left.Columns() {
		src, _ := left.Column(name)
		gathers = append(gathers, gatherSpec{src: src, name: name, idx: leftIdx})
	}
	for _, name := range right.Columns() {
		src, _ := right.Column(name)
		outName := name
		if left.HasColumn(name) {
			outName = name + suffix
		}
		gathers = append(gathers, gatherSpec{src: src, name: outName, idx: rightIdx})
	}

	cols := make([]Column, len(gathers))
	if len(gathers) > 1 && len(leftIdx) >= config.GetConfig().ParallelThreshold {
		pool := parallel.NewWorkerPool(config.GetConfig().WorkerPoolSize)
		defer pool.Close()
		errs := make([]error, len(gathers))
		parallel.ProcessIndexed(pool, gathers, func(i int, g gatherSpec) struct{} {
			col, gerr := takeColumn(g.src, g.name, g.idx, mem)
			if gerr != nil {
				errs[i] = gerr
				return struct{}{}
			}
			cols[i] = col
			return struct{}{}
		})
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
	} else {
		for i, g := range gathers {
			col, err := takeColumn(g.src, g.name, g.idx, mem)
			if err != nil {
				return nil, err
			}
			cols[i] = col
		}
	}
	return New(cols...)
}
