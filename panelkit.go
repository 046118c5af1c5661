// Package panelkit provides an in-memory tabular data engine: columnar
// tables with typed, null-aware columns, split-apply-combine grouping,
// equality/range/rolling joins, wide-long reshaping, and calendar-aware
// lag/lead over irregular panels. This package is the sole public API; the
// implementation lives under internal.
//
// Every operation either returns a new Table (pure) or carries an explicit
// in-place variant; nothing aliases silently. The engine performs no I/O:
// FromRows is the only ingestion point and Table.Rows the only egress.
package panelkit

import (
	"iter"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/panelkit/panelkit/internal/config"
	pkerrors "github.com/panelkit/panelkit/internal/errors"
	"github.com/panelkit/panelkit/internal/series"
	"github.com/panelkit/panelkit/internal/table"
	"github.com/panelkit/panelkit/internal/trace"
)

// Column is a typed, null-aware column. Build one with NewColumn or
// NewColumnWithNulls.
type Column = table.Column

// Kind enumerates the storable cell types.
type Kind = table.Kind

const (
	KindString  = table.KindString
	KindInt64   = table.KindInt64
	KindFloat64 = table.KindFloat64
	KindBool    = table.KindBool
	KindTime    = table.KindTime
)

// ColumnSpec names and types one ingested column.
type ColumnSpec = table.ColumnSpec

// Join specification types.
type (
	JoinType      = table.JoinType
	JoinOp        = table.JoinOp
	JoinClause    = table.JoinClause
	JoinSpec      = table.JoinSpec
	RollDirection = table.RollDirection
)

const (
	InnerJoin = table.InnerJoin
	LeftJoin  = table.LeftJoin
	RightJoin = table.RightJoin
	OuterJoin = table.OuterJoin
	SemiJoin  = table.SemiJoin
	AntiJoin  = table.AntiJoin
	CrossJoin = table.CrossJoin

	OpEq      = table.OpEq
	OpLe      = table.OpLe
	OpGe      = table.OpGe
	OpNearest = table.OpNearest

	RollNearest  = table.RollNearest
	RollForward  = table.RollForward
	RollBackward = table.RollBackward
)

// Aggregation types and constructors.
type (
	AggFunc    = table.AggFunc
	AggSpec    = table.AggSpec
	AggOptions = table.AggOptions
)

// Reduction constructors, re-exported for spec building.
var (
	Sum      = table.Sum
	Mean     = table.Mean
	Median   = table.Median
	Min      = table.Min
	Max      = table.Max
	Count    = table.Count
	Quantile = table.Quantile
	Agg      = table.Agg
)

// Temporal shift types.
type (
	ShiftUnit = table.ShiftUnit
	ShiftSpec = table.ShiftSpec
)

const (
	ShiftDay     = table.ShiftDay
	ShiftMonth   = table.ShiftMonth
	ShiftQuarter = table.ShiftQuarter
	ShiftYear    = table.ShiftYear
)

// TableError is the structured error type every operation returns.
type TableError = pkerrors.TableError

// Error sentinels for errors.Is checks against the failure taxonomy.
var (
	ErrSchema        = pkerrors.ErrSchema
	ErrTypeMismatch  = pkerrors.ErrTypeMismatch
	ErrKey           = pkerrors.ErrKey
	ErrNameCollision = pkerrors.ErrNameCollision
	ErrDuplicateKey  = pkerrors.ErrDuplicateKey
	ErrAmbiguousJoin = pkerrors.ErrAmbiguousJoin
)

// Config controls parallelism thresholds and tracing.
type Config = config.Config

// Configure installs cfg as the process-wide configuration and applies its
// tracing toggle.
func Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.SetConfig(cfg)
	trace.Enable(cfg.TraceOperations)
	return nil
}

// LoadConfigFile loads and installs configuration from a YAML or JSON file.
func LoadConfigFile(path string) error {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	return Configure(cfg)
}

// SetTraceLogger directs operation traces to the given logger.
func SetTraceLogger(l *zap.Logger) {
	trace.SetLogger(l)
}

// NewColumn builds a column from values with no nulls. Supported element
// types: string, int64, float64, bool, time.Time.
func NewColumn[T any](name string, values []T) Column {
	return series.New(name, values, memory.NewGoAllocator())
}

// NewColumnWithNulls builds a column from values and a validity mask;
// valid[i] == false marks row i null.
func NewColumnWithNulls[T any](name string, values []T, valid []bool) Column {
	return series.NewWithNulls(name, values, valid, memory.NewGoAllocator())
}

// Table is the public handle for a table of data. It wraps the internal
// implementation to hide representation details.
type Table struct {
	t *table.Table
}

// NewTable creates a Table from columns. Fails with a SchemaError on
// duplicate names or unequal column lengths.
func NewTable(cols ...Column) (*Table, error) {
	t, err := table.New(cols...)
	if err != nil {
		return nil, err
	}
	return &Table{t: t}, nil
}

// FromRows is the sole ingestion entry point: uniform rows plus a schema in.
// A nil cell is null.
func FromRows(specs []ColumnSpec, rows [][]any) (*Table, error) {
	t, err := table.FromRows(specs, rows, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: t}, nil
}

// Rows is the sole egress entry point: the table as rows of Go values, nil
// for null cells.
func (t *Table) Rows() [][]any { return t.t.Rows() }

// Schema reports each column's name and kind in order.
func (t *Table) Schema() []ColumnSpec { return t.t.Schema() }

// Columns returns the column names in order.
func (t *Table) Columns() []string { return t.t.Columns() }

// Len returns the number of rows.
func (t *Table) Len() int { return t.t.Len() }

// Width returns the number of columns.
func (t *Table) Width() int { return t.t.Width() }

// HasColumn checks if a column exists.
func (t *Table) HasColumn(name string) bool { return t.t.HasColumn(name) }

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) { return t.t.Column(name) }

// String returns a schema summary.
func (t *Table) String() string { return t.t.String() }

// Release releases all underlying Arrow memory.
func (t *Table) Release() { t.t.Release() }

// Select returns a new Table with only the named columns, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	out, err := t.t.Select(names...)
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Drop returns a new Table without the named columns.
func (t *Table) Drop(names ...string) *Table {
	return &Table{t: t.t.Drop(names...)}
}

// WithColumn returns a new Table with the column appended or replaced in
// position; the receiver is untouched.
func (t *Table) WithColumn(col Column) (*Table, error) {
	out, err := t.t.WithColumn(col)
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// SetColumn is the in-place variant of WithColumn.
func (t *Table) SetColumn(col Column) error {
	return t.t.SetColumn(col)
}

// FilterRows returns a new Table with the rows the predicate keeps, in
// original order.
func (t *Table) FilterRows(pred func(row int) bool) (*Table, error) {
	out, err := t.t.FilterRows(pred, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Slice returns rows [start, end) as a new Table.
func (t *Table) Slice(start, end int) (*Table, error) {
	out, err := t.t.Slice(start, end, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Clone returns a deep copy with independent storage.
func (t *Table) Clone() (*Table, error) {
	out, err := t.t.Clone(memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// SortBy returns a new Table under a stable multi-key sort; ascending may be
// nil for all-ascending.
func (t *Table) SortBy(keys []string, ascending []bool) (*Table, error) {
	span := trace.Start("SortBy", t.Len())
	out, err := t.t.SortBy(keys, ascending, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// SortInPlace is the in-place variant of SortBy. Validation precedes any
// mutation.
func (t *Table) SortInPlace(keys []string, ascending []bool) error {
	return t.t.SortInPlace(keys, ascending, memory.NewGoAllocator())
}

// Concat concatenates tables vertically. With unionColumns false all tables
// must share an identical schema; with true the result schema is the union
// and missing cells are null.
func (t *Table) Concat(others []*Table, unionColumns bool) (*Table, error) {
	inner := make([]*table.Table, len(others))
	for i, o := range others {
		inner[i] = o.t
	}
	out, err := t.t.Concat(inner, unionColumns, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Join joins two tables under the given specification.
func (t *Table) Join(right *Table, spec JoinSpec) (*Table, error) {
	span := trace.Start("Join", t.Len())
	out, err := table.Join(t.t, right.t, spec, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// Melt reshapes wide to long. variableName and valueName default to
// "variable" and "value"; coerce opts into stringifying mixed types.
func (t *Table) Melt(idCols, valueCols []string, variableName, valueName string, coerce bool) (*Table, error) {
	span := trace.Start("Melt", t.Len())
	out, err := table.Melt(t.t, idCols, valueCols, variableName, valueName, coerce, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// Cast reshapes long to wide. A nil agg is strict: duplicate id/variable
// pairs fail with a DuplicateKeyError.
func (t *Table) Cast(idCols []string, variableCol, valueCol string, agg *AggFunc) (*Table, error) {
	span := trace.Start("Cast", t.Len())
	out, err := table.Cast(t.t, idCols, variableCol, valueCol, agg, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// Shift computes a calendar-interval lag or lead and returns the table with
// the shifted column appended.
func (t *Table) Shift(spec ShiftSpec) (*Table, error) {
	span := trace.Start("Shift", t.Len())
	out, err := table.Shift(t.t, spec, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// GroupIndex is the public handle for a group partition of a table. It may
// be reused across multiple aggregations; mutating the key columns of the
// underlying table invalidates it.
type GroupIndex struct {
	gi *table.GroupIndex
}

// GroupBy partitions the table's rows by the key columns, preserving
// first-seen group order.
func (t *Table) GroupBy(keyCols ...string) (*GroupIndex, error) {
	gi, err := table.NewGroupIndex(t.t, keyCols)
	if err != nil {
		return nil, err
	}
	return &GroupIndex{gi: gi}, nil
}

// NumGroups returns the number of distinct key tuples.
func (g *GroupIndex) NumGroups() int { return g.gi.NumGroups() }

// GroupRows returns the ordered row indices of a group.
func (g *GroupIndex) GroupRows(id int) []int { return g.gi.Rows(id) }

// GroupFor returns the group id for a row.
func (g *GroupIndex) GroupFor(row int) (int, error) { return g.gi.GroupFor(row) }

// Groups returns a restartable iteration over (group id, row indices) in
// first-seen group order.
func (g *GroupIndex) Groups() iter.Seq2[int, []int] { return g.gi.Groups() }

// KeyTable materializes the key columns, one row per group.
func (g *GroupIndex) KeyTable() (*Table, error) {
	out, err := g.gi.KeyTable(memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Release drops the index's retained column references.
func (g *GroupIndex) Release() { g.gi.Release() }

// Reduce applies one reduction to one column, one scalar per group.
func (g *GroupIndex) Reduce(column string, fn AggFunc, opts AggOptions) (Column, error) {
	return table.Reduce(g.gi, column, fn, opts, memory.NewGoAllocator())
}

// ReduceMany applies (column, function) pairs, producing one row per group:
// key columns followed by one column per spec.
func (g *GroupIndex) ReduceMany(specs []AggSpec, opts AggOptions) (*Table, error) {
	span := trace.Start("ReduceMany", g.gi.NumGroups())
	out, err := table.ReduceMany(g.gi, specs, opts, memory.NewGoAllocator())
	if err != nil {
		span.End(0, err)
		return nil, err
	}
	span.End(out.Len(), nil)
	return &Table{t: out}, nil
}

// Transform broadcasts each group's reduced value back to every row,
// preserving input length and order.
func (g *GroupIndex) Transform(column string, fn AggFunc, opts AggOptions, as string) (Column, error) {
	return table.Transform(g.gi, column, fn, opts, as, memory.NewGoAllocator())
}
