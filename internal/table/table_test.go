package table_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkerrors "github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
	"github.com/panelkit/panelkit/internal/table"
	"github.com/panelkit/panelkit/internal/testutil"
)

func TestNewValidation(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("accepts equal-length columns", func(t *testing.T) {
		tbl, err := table.New(
			series.New("entity", []string{"acme", "bolt"}, mem),
			series.New("price", []float64{101.5, 88.0}, mem),
		)
		require.NoError(t, err)
		defer tbl.Release()

		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, 2, tbl.Width())
		assert.Equal(t, []string{"entity", "price"}, tbl.Columns())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := table.New(
			series.New("price", []float64{1}, mem),
			series.New("price", []float64{2}, mem),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})

	t.Run("rejects ragged lengths", func(t *testing.T) {
		_, err := table.New(
			series.New("entity", []string{"acme", "bolt"}, mem),
			series.New("price", []float64{101.5}, mem),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})

	t.Run("empty table", func(t *testing.T) {
		tbl, err := table.New()
		require.NoError(t, err)
		assert.Equal(t, 0, tbl.Len())
		assert.Equal(t, 0, tbl.Width())
	})
}

func TestSelect(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	t.Run("projects and reorders", func(t *testing.T) {
		sel, err := tbl.Select("price", "entity")
		require.NoError(t, err)
		defer sel.Release()

		assert.Equal(t, []string{"price", "entity"}, sel.Columns())
		assert.Equal(t, tbl.Len(), sel.Len())
	})

	t.Run("selecting all columns preserves the table", func(t *testing.T) {
		sel, err := tbl.Select(tbl.Columns()...)
		require.NoError(t, err)
		defer sel.Release()

		testutil.AssertTableEqual(t, tbl, sel)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := tbl.Select("missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrKey)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("duplicate selection", func(t *testing.T) {
		_, err := tbl.Select("price", "price")
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})
}

func TestDrop(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	dropped := tbl.Drop("price", "nonexistent")
	defer dropped.Release()

	testutil.AssertTableHasColumns(t, dropped, []string{"entity", "date", "volume"})
	assert.Equal(t, tbl.Len(), dropped.Len())
}

func TestWithColumn(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreateSimpleTable(t, mem.Allocator)
	defer tbl.Release()

	t.Run("appends a new column", func(t *testing.T) {
		out, err := tbl.WithColumn(series.New("volume", []int64{100, 200}, mem.Allocator))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price", "volume"}, out.Columns())
		assert.Equal(t, 2, tbl.Width(), "input table is unchanged")
	})

	t.Run("replaces in position", func(t *testing.T) {
		out, err := tbl.WithColumn(series.New("price", []float64{1.0, 2.0}, mem.Allocator))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price"}, out.Columns())
		assert.Equal(t, []any{1.0, 2.0}, testutil.ColumnValues(t, out, "price"))
		assert.Equal(t, []any{101.5, 88.0}, testutil.ColumnValues(t, tbl, "price"))
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		_, err := tbl.WithColumn(series.New("volume", []int64{100}, mem.Allocator))
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})
}

func TestSetColumn(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreateSimpleTable(t, mem.Allocator)
	defer tbl.Release()

	t.Run("mutates in place", func(t *testing.T) {
		err := tbl.SetColumn(series.New("price", []float64{5.0, 6.0}, mem.Allocator))
		require.NoError(t, err)
		assert.Equal(t, []any{5.0, 6.0}, testutil.ColumnValues(t, tbl, "price"))
	})

	t.Run("length mismatch leaves table intact", func(t *testing.T) {
		err := tbl.SetColumn(series.New("extra", []int64{1, 2, 3}, mem.Allocator))
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
		assert.Equal(t, 2, tbl.Width())
	})
}

func TestFilterRows(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	filtered, err := tbl.FilterRows(func(row int) bool { return row%2 == 0 }, mem.Allocator)
	require.NoError(t, err)
	defer filtered.Release()

	assert.Equal(t, 2, filtered.Len())
	assert.Equal(t, []any{"acme", "acme"}, testutil.ColumnValues(t, filtered, "entity"))
}

func TestSlice(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	tests := []struct {
		name     string
		start    int
		end      int
		expected int
	}{
		{name: "interior window", start: 1, end: 3, expected: 2},
		{name: "clamps past the end", start: 2, end: 10, expected: 2},
		{name: "clamps negative start", start: -5, end: 2, expected: 2},
		{name: "empty window", start: 3, end: 3, expected: 0},
		{name: "inverted bounds", start: 3, end: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sliced, err := tbl.Slice(tt.start, tt.end, mem.Allocator)
			require.NoError(t, err)
			defer sliced.Release()

			assert.Equal(t, tt.expected, sliced.Len())
		})
	}
}

func TestClone(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	tbl := testutil.CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	clone, err := tbl.Clone(mem.Allocator)
	require.NoError(t, err)
	defer clone.Release()

	testutil.AssertTableEqual(t, tbl, clone)

	// Mutating the clone must not touch the original.
	err = clone.SetColumn(series.New("price", []float64{0, 0, 0, 0}, mem.Allocator))
	require.NoError(t, err)
	assert.NotEqual(t, testutil.ColumnValues(t, tbl, "price"), testutil.ColumnValues(t, clone, "price"))
}

func TestConcat(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("identical schemas stack rows", func(t *testing.T) {
		a := testutil.CreateSimpleTable(t, mem.Allocator)
		defer a.Release()
		b := testutil.CreateSimpleTable(t, mem.Allocator)
		defer b.Release()

		out, err := a.Concat([]*table.Table{b}, false, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, 4, out.Len())
		assert.Equal(t, []any{"acme", "bolt", "acme", "bolt"}, testutil.ColumnValues(t, out, "entity"))
	})

	t.Run("strict mode rejects schema drift", func(t *testing.T) {
		a := testutil.CreateSimpleTable(t, mem.Allocator)
		defer a.Release()
		b, err := table.New(series.New("entity", []string{"cygnus"}, mem.Allocator))
		require.NoError(t, err)
		defer b.Release()

		_, err = a.Concat([]*table.Table{b}, false, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrSchema)
	})

	t.Run("union fills missing columns with null", func(t *testing.T) {
		a := testutil.CreateSimpleTable(t, mem.Allocator)
		defer a.Release()
		b, err := table.New(
			series.New("entity", []string{"cygnus"}, mem.Allocator),
			series.New("volume", []int64{400}, mem.Allocator),
		)
		require.NoError(t, err)
		defer b.Release()

		out, err := a.Concat([]*table.Table{b}, true, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price", "volume"}, out.Columns())
		assert.Equal(t, []any{101.5, 88.0, nil}, testutil.ColumnValues(t, out, "price"))
		assert.Equal(t, []any{nil, nil, int64(400)}, testutil.ColumnValues(t, out, "volume"))
	})

	t.Run("union rejects conflicting types", func(t *testing.T) {
		a := testutil.CreateSimpleTable(t, mem.Allocator)
		defer a.Release()
		b, err := table.New(series.New("price", []string{"expensive"}, mem.Allocator))
		require.NoError(t, err)
		defer b.Release()

		_, err = a.Concat([]*table.Table{b}, true, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrTypeMismatch)
	})
}
