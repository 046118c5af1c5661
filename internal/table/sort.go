package table

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/panelkit/panelkit/internal/errors"
)

// sortPermutation computes the stable row permutation for a multi-key sort.
// ascending may be nil (all ascending) or must match keys in length. Null
// cells sort before any value under ascending order.
func (t *Table) sortPermutation(op string, keys []string, ascending []bool) ([]int, error) {
	if len(keys) == 0 {
		return nil, errors.NewSchemaError(op, "", "no sort keys given")
	}
	if ascending == nil {
		ascending = make([]bool, len(keys))
		for i := range ascending {
			ascending[i] = true
		}
	}
	if len(ascending) != len(keys) {
		return nil, errors.NewSchemaError(op, "", "sort keys and directions differ in length")
	}

	readers := make([]colReader, 0, len(keys))
	defer func() {
		for _, r := range readers {
			r.release()
		}
	}()
	for _, key := range keys {
		col, exists := t.columns[key]
		if !exists {
			return nil, errors.NewKeyError(op, key)
		}
		readers = append(readers, newColReader(col))
	}
	for i, r := range readers {
		if !orderableType(r.arr.DataType().ID()) {
			return nil, errors.NewTypeMismatchError(op, keys[i], "column type is not orderable")
		}
	}

	perm := make([]int, t.Len())
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		for k, r := range readers {
			c := r.compare(perm[a], r, perm[b])
			if c == 0 {
				continue
			}
			if ascending[k] {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return perm, nil
}

// SortBy returns a new Table sorted by the given keys with a stable
// multi-key sort. The receiver is untouched.
func (t *Table) SortBy(keys []string, ascending []bool, mem memory.Allocator) (*Table, error) {
	perm, err := t.sortPermutation("SortBy", keys, ascending)
	if err != nil {
		return nil, err
	}
	return t.take(perm, mem)
}

// SortInPlace is the in-place variant of SortBy. All validation and column
// construction happens before the table is touched, so a failed call leaves
// the receiver unchanged.
func (t *Table) SortInPlace(keys []string, ascending []bool, mem memory.Allocator) error {
	perm, err := t.sortPermutation("SortInPlace", keys, ascending)
	if err != nil {
		return err
	}

	sorted := make(map[string]Column, len(t.order))
	for _, name := range t.order {
		col, err := takeColumn(t.columns[name], name, perm, mem)
		if err != nil {
			return err
		}
		sorted[name] = col
	}

	for name, col := range sorted {
		t.columns[name].Release()
		t.columns[name] = col
	}
	return nil
}
