package table

import (
	"iter"

	"github.com/apache/arrow-go/v18/arrow/memory"
	xxhash "github.com/cespare/xxhash/v2"

	"github.com/panelkit/panelkit/internal/errors"
)

// GroupIndex partitions the rows of a table by a key-column tuple. Groups
// keep first-seen order; rows within a group keep original order. The index
// holds retained references to its key columns for probe support, so Release
// must be called when the index is no longer needed. Mutating the key
// columns of the underlying table invalidates the index.
type GroupIndex struct {
	table    *Table
	keyCols  []string
	readers  []colReader
	groups   [][]int        // group id -> ordered row indices
	firstRow []int          // group id -> first row seen
	rowGroup []int          // row -> group id
	nullKey  []bool         // group id -> any key cell null
	buckets  map[uint64][]int // key hash -> group ids (collision chain)
}

// NewGroupIndex builds a group index over the key columns in a single linear
// pass. Key tuples hash via xxhash over a type-tagged encoding; hash
// collisions resolve by full tuple equality. Null key cells are self-equal
// for grouping, so rows with equal-up-to-null tuples share a group.
func NewGroupIndex(t *Table, keyCols []string) (*GroupIndex, error) {
	if len(keyCols) == 0 {
		return nil, errors.NewSchemaError("GroupIndex", "", "no key columns given")
	}

	readers := make([]colReader, 0, len(keyCols))
	for _, key := range keyCols {
		col, exists := t.Column(key)
		if !exists {
			for _, r := range readers {
				r.release()
			}
			return nil, errors.NewKeyError("GroupIndex", key)
		}
		readers = append(readers, newColReader(col))
	}

	g := &GroupIndex{
		table:    t,
		keyCols:  append([]string(nil), keyCols...),
		readers:  readers,
		rowGroup: make([]int, t.Len()),
		buckets:  make(map[uint64][]int),
	}

	var buf []byte
	for row := 0; row < t.Len(); row++ {
		buf = encodeKey(buf[:0], readers, row)
		h := xxhash.Sum64(buf)

		id := -1
		for _, candidate := range g.buckets[h] {
			if keysEqual(readers, row, readers, g.firstRow[candidate]) {
				id = candidate
				break
			}
		}
		if id < 0 {
			id = len(g.groups)
			g.groups = append(g.groups, nil)
			g.firstRow = append(g.firstRow, row)
			g.nullKey = append(g.nullKey, anyKeyNull(readers, row))
			g.buckets[h] = append(g.buckets[h], id)
		}
		g.groups[id] = append(g.groups[id], row)
		g.rowGroup[row] = id
	}

	return g, nil
}

func anyKeyNull(readers []colReader, row int) bool {
	for _, r := range readers {
		if r.isNull(row) {
			return true
		}
	}
	return false
}

// NumGroups returns the number of distinct key tuples.
func (g *GroupIndex) NumGroups() int {
	return len(g.groups)
}

// Rows returns the ordered row indices of the given group.
func (g *GroupIndex) Rows(id int) []int {
	return g.groups[id]
}

// FirstRow returns the first row assigned to the given group.
func (g *GroupIndex) FirstRow(id int) int {
	return g.firstRow[id]
}

// GroupFor returns the group id for a row index.
func (g *GroupIndex) GroupFor(row int) (int, error) {
	if row < 0 || row >= len(g.rowGroup) {
		return 0, errors.NewKeyError("GroupFor", "")
	}
	return g.rowGroup[row], nil
}

// KeyColumns returns the names of the key columns.
func (g *GroupIndex) KeyColumns() []string {
	return append([]string(nil), g.keyCols...)
}

// Groups returns a restartable iteration over (group id, row indices) in
// first-seen group order.
func (g *GroupIndex) Groups() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		for id, rows := range g.groups {
			if !yield(id, rows) {
				return
			}
		}
	}
}

// KeyTable materializes the key columns with one row per group, in group
// order. Aggregation output and join bucketing both build on it.
func (g *GroupIndex) KeyTable(mem memory.Allocator) (*Table, error) {
	keyed, err := g.table.Select(g.keyCols...)
	if err != nil {
		return nil, err
	}
	return keyed.take(g.firstRow, mem)
}

// probe finds the group whose key tuple equals row `row` of the probe
// readers. matchNulls selects whether a null key cell may match; with the
// default false, any null in the probe tuple means no match (SQL equality
// semantics). Probe readers must align with the index key columns.
func (g *GroupIndex) probe(probeReaders []colReader, row int, matchNulls bool) (int, bool) {
	if !matchNulls && anyKeyNull(probeReaders, row) {
		return 0, false
	}
	buf := encodeKey(nil, probeReaders, row)
	h := xxhash.Sum64(buf)
	for _, candidate := range g.buckets[h] {
		if !matchNulls && g.nullKey[candidate] {
			continue
		}
		if keysEqual(probeReaders, row, g.readers, g.firstRow[candidate]) {
			return candidate, true
		}
	}
	return 0, false
}

// Release drops the retained key-column references.
func (g *GroupIndex) Release() {
	for _, r := range g.readers {
		r.release()
	}
	g.readers = nil
}
