// Package testutil provides shared helpers for tests across the panelkit
// packages: memory allocator setup, canonical panel-shaped test tables, and
// table assertions.
package testutil

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/panelkit/panelkit/internal/series"
	"github.com/panelkit/panelkit/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of rows in generated test tables.
	defaultRowCount = 4
)

// TestMemoryContext provides a memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator with automatic cleanup for tests.
// Returns a TestMemoryContext that should be released with defer.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewGoAllocator()

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup: func() {
			// The Go allocator is garbage collected; the hook exists so
			// callers do not change when a checked allocator is swapped in.
		},
	}
}

// Date builds a UTC midnight timestamp, the canonical form for observation
// dates in test panels.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TestTableOption configures test table creation.
type TestTableOption func(*testTableConfig)

type testTableConfig struct {
	rowCount  int
	withFlags bool
}

// WithRowCount sets the number of rows in generated test data.
func WithRowCount(count int) TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.rowCount = count
	}
}

// WithFlagColumn includes an 'active' boolean column.
func WithFlagColumn() TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.withFlags = true
	}
}

// CreatePanelTable creates a standard panel-shaped test table with one row per
// entity/date observation.
//
// The default table includes:
//   - entity (string): ["acme", "bolt", "acme", "cygnus"]
//   - date (timestamp): monthly observations starting 2014-01-31
//   - price (float64): [101.5, 88.0, 103.25, 56.75]
//   - volume (int64): [1200, 800, 1350, 400]
func CreatePanelTable(tb testing.TB, allocator memory.Allocator, opts ...TestTableOption) *table.Table {
	tb.Helper()

	cfg := &testTableConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	cols := []table.Column{
		series.New("entity", generateEntities(cfg.rowCount), allocator),
		series.New("date", generateDates(cfg.rowCount), allocator),
		series.New("price", generatePrices(cfg.rowCount), allocator),
		series.New("volume", generateVolumes(cfg.rowCount), allocator),
	}
	if cfg.withFlags {
		cols = append(cols, series.New("active", generateFlags(cfg.rowCount), allocator))
	}

	tbl, err := table.New(cols...)
	require.NoError(tb, err)
	return tbl
}

// CreateSimpleTable creates a two-column table for tests that do not need the
// full panel dataset.
func CreateSimpleTable(tb testing.TB, allocator memory.Allocator) *table.Table {
	tb.Helper()

	entities := series.New("entity", []string{"acme", "bolt"}, allocator)
	prices := series.New("price", []float64{101.5, 88.0}, allocator)

	tbl, err := table.New(entities, prices)
	require.NoError(tb, err)
	return tbl
}

// AssertTableEqual performs a row-by-row comparison of two tables, treating
// null cells as equal to each other.
func AssertTableEqual(t *testing.T, expected, actual *table.Table) {
	t.Helper()

	require.NotNil(t, expected, "expected table should not be nil")
	require.NotNil(t, actual, "actual table should not be nil")

	assert.Equal(t, expected.Len(), actual.Len(), "table lengths should match")
	assert.Equal(t, expected.Width(), actual.Width(), "table widths should match")
	assert.Equal(t, expected.Columns(), actual.Columns(), "table columns should match")

	assert.Equal(t, expected.Rows(), actual.Rows(), "table rows should match")
}

// AssertTableHasColumns verifies that a table carries exactly the expected
// column names.
func AssertTableHasColumns(t *testing.T, tbl *table.Table, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, tbl, "table should not be nil")

	assert.Len(t, tbl.Columns(), len(expectedColumns), "column count should match")
	for _, col := range expectedColumns {
		assert.True(t, tbl.HasColumn(col), "table should have column %s", col)
	}
}

// AssertTableNotEmpty verifies that a table has at least one row and column.
func AssertTableNotEmpty(t *testing.T, tbl *table.Table) {
	t.Helper()

	require.NotNil(t, tbl, "table should not be nil")
	assert.Positive(t, tbl.Len(), "table should not be empty")
	assert.Positive(t, tbl.Width(), "table should have columns")
}

// ColumnValues extracts a named column as a slice of cell values, with nil
// for null cells.
func ColumnValues(t *testing.T, tbl *table.Table, name string) []any {
	t.Helper()

	idx := -1
	for i, col := range tbl.Columns() {
		if col == name {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0, "table should have column %s", name)

	rows := tbl.Rows()
	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[idx]
	}
	return values
}

// Helper functions for generating test data.

func generateEntities(count int) []string {
	base := []string{"acme", "bolt", "acme", "cygnus", "bolt", "acme", "cygnus", "bolt"}
	entities := make([]string, count)
	for i := range count {
		entities[i] = base[i%len(base)]
	}
	return entities
}

func generateDates(count int) []time.Time {
	dates := make([]time.Time, count)
	start := Date(2014, time.January, 31)
	for i := range count {
		dates[i] = start.AddDate(0, i/2, 0)
	}
	return dates
}

func generatePrices(count int) []float64 {
	base := []float64{101.5, 88.0, 103.25, 56.75, 90.0, 105.5, 58.25, 87.5}
	prices := make([]float64, count)
	for i := range count {
		prices[i] = base[i%len(base)]
	}
	return prices
}

func generateVolumes(count int) []int64 {
	base := []int64{1200, 800, 1350, 400, 820, 1400, 390, 760}
	volumes := make([]int64, count)
	for i := range count {
		volumes[i] = base[i%len(base)]
	}
	return volumes
}

func generateFlags(count int) []bool {
	base := []bool{true, true, false, true, true, false, true, false}
	flags := make([]bool, count)
	for i := range count {
		flags[i] = base[i%len(base)]
	}
	return flags
}
