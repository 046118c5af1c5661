package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePanelTable(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	tbl := CreatePanelTable(t, mem.Allocator)
	defer tbl.Release()

	AssertTableHasColumns(t, tbl, []string{"entity", "date", "price", "volume"})
	assert.Equal(t, 4, tbl.Len())
}

func TestCreatePanelTableOptions(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	tbl := CreatePanelTable(t, mem.Allocator, WithRowCount(8), WithFlagColumn())
	defer tbl.Release()

	assert.Equal(t, 8, tbl.Len())
	assert.True(t, tbl.HasColumn("active"))
}

func TestColumnValues(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	tbl := CreateSimpleTable(t, mem.Allocator)
	defer tbl.Release()

	values := ColumnValues(t, tbl, "entity")
	assert.Equal(t, []any{"acme", "bolt"}, values)
}

func TestDate(t *testing.T) {
	d := Date(2014, time.March, 31)
	require.Equal(t, time.UTC, d.Location())
	assert.Equal(t, "2014-03-31T00:00:00Z", d.Format(time.RFC3339))
}
