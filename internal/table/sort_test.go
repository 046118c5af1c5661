package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkerrors "github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
	"github.com/panelkit/panelkit/internal/table"
	"github.com/panelkit/panelkit/internal/testutil"
)

func makeSortTable(t *testing.T, mem *testutil.TestMemoryContext) *table.Table {
	t.Helper()
	tbl, err := table.New(
		series.New("entity", []string{"bolt", "acme", "bolt", "acme"}, mem.Allocator),
		series.NewWithNulls("price", []float64{88.0, 101.5, 0, 99.0}, []bool{true, true, false, true}, mem.Allocator),
		series.New("volume", []int64{800, 1200, 820, 1350}, mem.Allocator),
	)
	require.NoError(t, err)
	return tbl
}

func TestSortBy(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("single ascending key", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		sorted, err := tbl.SortBy([]string{"volume"}, nil, mem.Allocator)
		require.NoError(t, err)
		defer sorted.Release()

		assert.Equal(t, []any{int64(800), int64(820), int64(1200), int64(1350)},
			testutil.ColumnValues(t, sorted, "volume"))
		// Input order must be untouched.
		assert.Equal(t, []any{int64(800), int64(1200), int64(820), int64(1350)},
			testutil.ColumnValues(t, tbl, "volume"))
	})

	t.Run("multi-key with mixed directions", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		sorted, err := tbl.SortBy([]string{"entity", "volume"}, []bool{true, false}, mem.Allocator)
		require.NoError(t, err)
		defer sorted.Release()

		assert.Equal(t, []any{"acme", "acme", "bolt", "bolt"},
			testutil.ColumnValues(t, sorted, "entity"))
		assert.Equal(t, []any{int64(1350), int64(1200), int64(820), int64(800)},
			testutil.ColumnValues(t, sorted, "volume"))
	})

	t.Run("nulls sort first ascending", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		sorted, err := tbl.SortBy([]string{"price"}, nil, mem.Allocator)
		require.NoError(t, err)
		defer sorted.Release()

		assert.Equal(t, []any{nil, 88.0, 99.0, 101.5},
			testutil.ColumnValues(t, sorted, "price"))
	})

	t.Run("nulls sort last descending", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		sorted, err := tbl.SortBy([]string{"price"}, []bool{false}, mem.Allocator)
		require.NoError(t, err)
		defer sorted.Release()

		assert.Equal(t, []any{101.5, 99.0, 88.0, nil},
			testutil.ColumnValues(t, sorted, "price"))
	})

	t.Run("stable for equal keys", func(t *testing.T) {
		tbl, err := table.New(
			series.New("key", []string{"a", "a", "a"}, mem.Allocator),
			series.New("seq", []int64{1, 2, 3}, mem.Allocator),
		)
		require.NoError(t, err)
		defer tbl.Release()

		sorted, err := tbl.SortBy([]string{"key"}, nil, mem.Allocator)
		require.NoError(t, err)
		defer sorted.Release()

		assert.Equal(t, []any{int64(1), int64(2), int64(3)},
			testutil.ColumnValues(t, sorted, "seq"))
	})

	t.Run("unknown key", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		_, err := tbl.SortBy([]string{"missing"}, nil, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrKey)
	})

	t.Run("ascending length mismatch", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		_, err := tbl.SortBy([]string{"entity"}, []bool{true, false}, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})
}

func TestSortInPlace(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("reorders the receiver", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		err := tbl.SortInPlace([]string{"volume"}, nil, mem.Allocator)
		require.NoError(t, err)

		assert.Equal(t, []any{int64(800), int64(820), int64(1200), int64(1350)},
			testutil.ColumnValues(t, tbl, "volume"))
		assert.Equal(t, []any{"bolt", "bolt", "acme", "acme"},
			testutil.ColumnValues(t, tbl, "entity"))
	})

	t.Run("invalid key leaves table untouched", func(t *testing.T) {
		tbl := makeSortTable(t, mem)
		defer tbl.Release()

		err := tbl.SortInPlace([]string{"missing"}, nil, mem.Allocator)
		require.Error(t, err)
		assert.Equal(t, []any{int64(800), int64(1200), int64(820), int64(1350)},
			testutil.ColumnValues(t, tbl, "volume"))
	})
}
