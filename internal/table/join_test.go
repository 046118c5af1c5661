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

func makeJoinSides(t *testing.T, mem *testutil.TestMemoryContext) (*table.Table, *table.Table) {
	t.Helper()
	left, err := table.New(
		series.New("entity", []string{"acme", "bolt", "cygnus", "acme"}, mem.Allocator),
		series.New("price", []float64{101.5, 88.0, 56.75, 103.25}, mem.Allocator),
	)
	require.NoError(t, err)
	right, err := table.New(
		series.New("name", []string{"acme", "bolt", "dyna"}, mem.Allocator),
		series.New("sector", []string{"tech", "industrial", "energy"}, mem.Allocator),
	)
	require.NoError(t, err)
	return left, right
}

func eqOn(l, r string) []table.JoinClause {
	return []table.JoinClause{{Left: l, Op: table.OpEq, Right: r}}
}

func TestEquiJoin(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, right := makeJoinSides(t, mem)
	defer left.Release()
	defer right.Release()

	t.Run("inner keeps matches only", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price", "name", "sector"}, out.Columns())
		assert.Equal(t, []any{"acme", "bolt", "acme"}, testutil.ColumnValues(t, out, "entity"))
		assert.Equal(t, []any{"tech", "industrial", "tech"}, testutil.ColumnValues(t, out, "sector"))
	})

	t.Run("left fills unmatched with null", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.LeftJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, 4, out.Len())
		assert.Equal(t, []any{"tech", "industrial", nil, "tech"}, testutil.ColumnValues(t, out, "sector"))
	})

	t.Run("right preserves unmatched right rows", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.RightJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		// Three matches plus the unmatched dyna row.
		assert.Equal(t, 4, out.Len())
		assert.Equal(t, []any{"acme", "bolt", "acme", nil}, testutil.ColumnValues(t, out, "entity"))
		assert.Equal(t, []any{"acme", "bolt", "acme", "dyna"}, testutil.ColumnValues(t, out, "name"))
	})

	t.Run("outer keeps both sides", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.OuterJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		// Matches: acme, bolt, acme. Unmatched: cygnus (left), dyna (right).
		assert.Equal(t, 5, out.Len())
	})

	t.Run("semi projects left schema only", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.SemiJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price"}, out.Columns())
		assert.Equal(t, []any{"acme", "bolt", "acme"}, testutil.ColumnValues(t, out, "entity"))
	})

	t.Run("anti keeps the complement", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.AntiJoin, On: eqOn("entity", "name"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"entity", "price"}, out.Columns())
		assert.Equal(t, []any{"cygnus"}, testutil.ColumnValues(t, out, "entity"))
	})

	t.Run("semi plus anti partition the left side", func(t *testing.T) {
		spec := table.JoinSpec{Type: table.SemiJoin, On: eqOn("entity", "name")}
		semi, err := table.Join(left, right, spec, mem.Allocator)
		require.NoError(t, err)
		defer semi.Release()

		spec.Type = table.AntiJoin
		anti, err := table.Join(left, right, spec, mem.Allocator)
		require.NoError(t, err)
		defer anti.Release()

		assert.Equal(t, left.Len(), semi.Len()+anti.Len())
	})
}

func TestJoinDuplicateKeys(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(
		series.New("k", []string{"a", "b"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("k", []string{"a", "a", "b"}, mem.Allocator),
		series.New("v", []int64{1, 2, 3}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	out, err := table.Join(left, right, table.JoinSpec{
		Type: table.InnerJoin, On: eqOn("k", "k"),
	}, mem.Allocator)
	require.NoError(t, err)
	defer out.Release()

	// Each duplicate right match yields its own output row.
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, testutil.ColumnValues(t, out, "v"))
}

func TestJoinNullKeys(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(
		series.NewWithNulls("k", []string{"a", ""}, []bool{true, false}, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.NewWithNulls("k", []string{"a", ""}, []bool{true, false}, mem.Allocator),
		series.New("v", []int64{1, 2}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	t.Run("null keys never match by default", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, 1, out.Len())
		assert.Equal(t, []any{int64(1)}, testutil.ColumnValues(t, out, "v"))
	})

	t.Run("match nulls opts in", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"), MatchNulls: true,
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, 2, out.Len())
		assert.Equal(t, []any{int64(1), int64(2)}, testutil.ColumnValues(t, out, "v"))
	})
}

func TestJoinColumnSuffix(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(
		series.New("k", []string{"a"}, mem.Allocator),
		series.New("v", []int64{1}, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("k", []string{"a"}, mem.Allocator),
		series.New("v", []int64{2}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	t.Run("default suffix", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"k", "v", "k_right", "v_right"}, out.Columns())
	})

	t.Run("custom suffix", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"), Suffix: "_r",
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"k", "v", "k_r", "v_r"}, out.Columns())
	})
}

func TestCrossJoin(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(series.New("a", []int64{1, 2}, mem.Allocator))
	require.NoError(t, err)
	defer left.Release()
	right, err := table.New(series.New("b", []string{"x", "y", "z"}, mem.Allocator))
	require.NoError(t, err)
	defer right.Release()

	out, err := table.Join(left, right, table.JoinSpec{Type: table.CrossJoin}, mem.Allocator)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 6, out.Len())
	assert.Equal(t, []any{int64(1), int64(1), int64(1), int64(2), int64(2), int64(2)},
		testutil.ColumnValues(t, out, "a"))
}

func TestJoinValidation(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, right := makeJoinSides(t, mem)
	defer left.Release()
	defer right.Release()

	tests := []struct {
		name string
		spec table.JoinSpec
		want error
	}{
		{
			name: "no clauses",
			spec: table.JoinSpec{Type: table.InnerJoin},
			want: pkerrors.ErrAmbiguousJoin,
		},
		{
			name: "cross join with clauses",
			spec: table.JoinSpec{Type: table.CrossJoin, On: eqOn("entity", "name")},
			want: pkerrors.ErrAmbiguousJoin,
		},
		{
			name: "unknown left column",
			spec: table.JoinSpec{Type: table.InnerJoin, On: eqOn("missing", "name")},
			want: pkerrors.ErrSchema,
		},
		{
			name: "unknown right column",
			spec: table.JoinSpec{Type: table.InnerJoin, On: eqOn("entity", "missing")},
			want: pkerrors.ErrSchema,
		},
		{
			name: "incomparable key types",
			spec: table.JoinSpec{Type: table.InnerJoin, On: eqOn("price", "name")},
			want: pkerrors.ErrSchema,
		},
		{
			name: "nearest on non-numeric column",
			spec: table.JoinSpec{Type: table.InnerJoin, On: []table.JoinClause{
				{Left: "entity", Op: table.OpNearest, Right: "name"},
			}},
			want: pkerrors.ErrSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Join(left, right, tt.spec, mem.Allocator)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("semi join with inequality clause", func(t *testing.T) {
		_, err := table.Join(left, left, table.JoinSpec{
			Type: table.SemiJoin,
			On:   []table.JoinClause{{Left: "price", Op: table.OpLe, Right: "price"}},
		}, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrAmbiguousJoin)
	})

	t.Run("two nearest clauses", func(t *testing.T) {
		_, err := table.Join(left, left, table.JoinSpec{
			Type: table.InnerJoin,
			On: []table.JoinClause{
				{Left: "price", Op: table.OpNearest, Right: "price"},
				{Left: "price", Op: table.OpNearest, Right: "price"},
			},
		}, mem.Allocator)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkerrors.ErrAmbiguousJoin)
	})
}

func TestJoinLargeInput(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	// Enough output rows to cross the parallel materialization threshold.
	n := 2000
	keys := make([]string, n)
	values := make([]int64, n)
	labels := []string{"acme", "bolt", "cygnus", "dyna"}
	for i := range n {
		keys[i] = labels[i%len(labels)]
		values[i] = int64(i)
	}

	left, err := table.New(
		series.New("entity", keys, mem.Allocator),
		series.New("v", values, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("entity", []string{"acme", "bolt", "cygnus", "dyna"}, mem.Allocator),
		series.New("sector", []string{"industrial", "hardware", "aerospace", "energy"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	out, err := table.Join(left, right, table.JoinSpec{
		Type: table.InnerJoin, On: eqOn("entity", "entity"),
	}, mem.Allocator)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, n, out.Len())
	assert.Equal(t, []string{"entity", "v", "sector"}, out.Columns())

	entities := testutil.ColumnValues(t, out, "entity")
	sectors := testutil.ColumnValues(t, out, "sector")
	vs := testutil.ColumnValues(t, out, "v")
	bySector := map[string]string{
		"acme": "industrial", "bolt": "hardware", "cygnus": "aerospace", "dyna": "energy",
	}
	for i := range n {
		assert.Equal(t, bySector[entities[i].(string)], sectors[i])
		assert.Equal(t, int64(i), vs[i])
	}
}

func TestJoinMixedNumericKeys(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(
		series.New("k", []int64{1, 2, 3}, mem.Allocator),
		series.New("side", []string{"a", "b", "c"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("k", []float64{1.0, 2.0, 4.5}, mem.Allocator),
		series.New("tag", []string{"one", "two", "other"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	t.Run("equi join matches across int and float keys", func(t *testing.T) {
		out, err := table.Join(left, right, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 2, out.Len())
		assert.Equal(t, []any{"a", "b"}, testutil.ColumnValues(t, out, "side"))
		assert.Equal(t, []any{"one", "two"}, testutil.ColumnValues(t, out, "tag"))
	})

	t.Run("reversed sides match the same pairs", func(t *testing.T) {
		out, err := table.Join(right, left, table.JoinSpec{
			Type: table.InnerJoin, On: eqOn("k", "k"),
		}, mem.Allocator)
		require.NoError(t, err)
		defer out.Release()

		require.Equal(t, 2, out.Len())
		assert.Equal(t, []any{"a", "b"}, testutil.ColumnValues(t, out, "side"))
	})
}

func TestRollingJoinMixedNumericBucketKey(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	left, err := table.New(
		series.New("bucket", []int64{1, 2}, mem.Allocator),
		series.New("x", []float64{10.0, 10.0}, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("bucket", []float64{1.0, 2.0}, mem.Allocator),
		series.New("x", []float64{9.0, 12.0}, mem.Allocator),
		series.New("tag", []string{"lo", "hi"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	out, err := table.Join(left, right, table.JoinSpec{
		Type: table.InnerJoin,
		On: []table.JoinClause{
			{Left: "bucket", Op: table.OpEq, Right: "bucket"},
			{Left: "x", Op: table.OpNearest, Right: "x"},
		},
		Direction: table.RollNearest,
	}, mem.Allocator)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, 2, out.Len())
	assert.Equal(t, []any{"lo", "hi"}, testutil.ColumnValues(t, out, "tag"))
}

func TestJoinParallelHonorsAllocator(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	n := 2000
	keys := make([]string, n)
	for i := range n {
		keys[i] = []string{"acme", "bolt"}[i%2]
	}

	left, err := table.New(
		series.New("entity", keys, mem.Allocator),
	)
	require.NoError(t, err)
	defer left.Release()

	right, err := table.New(
		series.New("entity", []string{"acme", "bolt"}, mem.Allocator),
		series.New("sector", []string{"industrial", "hardware"}, mem.Allocator),
	)
	require.NoError(t, err)
	defer right.Release()

	// Inputs live elsewhere; only the operation gets the checked allocator,
	// so any output bytes it holds were allocated through the caller's mem.
	checked := memory.NewCheckedAllocator(memory.NewGoAllocator())
	out, err := table.Join(left, right, table.JoinSpec{
		Type: table.InnerJoin, On: eqOn("entity", "entity"),
	}, checked)
	require.NoError(t, err)
	defer out.Release()
	require.Equal(t, n, out.Len())

	// Output columns must live on the caller's allocator even when
	// materialization fans out across the worker pool.
	assert.Positive(t, checked.CurrentAlloc())
}
