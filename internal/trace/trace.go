// Package trace records per-operation execution traces for the tabular
// engine. Tracing is off by default and costs a single atomic load per
// operation when disabled; enabled, each traced operation emits one
// structured log line with a unique id, row counts, and duration.
package trace

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	enabled atomic.Bool

	loggerMu sync.RWMutex
	logger   *zap.Logger = zap.NewNop()
)

// Enable turns operation tracing on or off process-wide.
func Enable(on bool) {
	enabled.Store(on)
}

// Enabled reports whether tracing is active.
func Enabled() bool {
	return enabled.Load()
}

// SetLogger installs the destination logger. A nil logger restores the
// no-op default.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Span captures one in-flight operation.
type Span struct {
	id      string
	op      string
	rowsIn  int
	started time.Time
}

// Start opens a span for an operation over rowsIn input rows. When tracing
// is disabled the returned span is inert.
func Start(op string, rowsIn int) *Span {
	if !enabled.Load() {
		return nil
	}
	return &Span{
		id:      uuid.NewString(),
		op:      op,
		rowsIn:  rowsIn,
		started: time.Now(),
	}
}

// End closes the span, logging the outcome. rowsOut is the result row
// count; err, when non-nil, marks the operation failed. Safe on a nil span.
func (s *Span) End(rowsOut int, err error) {
	if s == nil {
		return
	}
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()

	fields := []zap.Field{
		zap.String("trace_id", s.id),
		zap.String("op", s.op),
		zap.Int("rows_in", s.rowsIn),
		zap.Int("rows_out", rowsOut),
		zap.Duration("duration", time.Since(s.started)),
	}
	if err != nil {
		l.Warn("operation failed", append(fields, zap.Error(err))...)
		return
	}
	l.Debug("operation complete", fields...)
}
