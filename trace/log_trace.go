package trace

import (
	"go.uber.org/zap"

	"github.com/sbl8/attrgraph/core"
)

// LogTrace logs every callback through a *zap.Logger at debug level, the
// way erigon wires a *zap.Logger through its subsystems rather than
// printing directly. It is opt-in: an engine built without a trace uses
// NopTrace.
type LogTrace struct {
	NopTrace
	Logger *zap.Logger
}

// NewLogTrace constructs a LogTrace over logger, falling back to a no-op
// logger when logger is nil.
func NewLogTrace(logger *zap.Logger) *LogTrace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTrace{Logger: logger}
}

func (t *LogTrace) BeginUpdate(a core.AttributeID) {
	t.Logger.Debug("begin_update", zap.Uint32("attribute", uint32(a)))
}

func (t *LogTrace) EndUpdate(a core.AttributeID, status core.UpdateStatus) {
	t.Logger.Debug("end_update", zap.Uint32("attribute", uint32(a)), zap.Stringer("status", status))
}

func (t *LogTrace) CycleDetected(a core.AttributeID) {
	t.Logger.Warn("cycle_detected", zap.Uint32("attribute", uint32(a)))
}

func (t *LogTrace) PassedDeadline(a core.AttributeID) {
	t.Logger.Warn("passed_deadline", zap.Uint32("attribute", uint32(a)))
}

func (t *LogTrace) CompareFailed(a core.AttributeID, offset, size, typeID uint32) {
	t.Logger.Debug("compare_failed",
		zap.Uint32("attribute", uint32(a)),
		zap.Uint32("offset", offset),
		zap.Uint32("size", size),
		zap.Uint32("type", typeID))
}

func (t *LogTrace) MarkValue(a core.AttributeID, changed bool) {
	t.Logger.Debug("mark_value", zap.Uint32("attribute", uint32(a)), zap.Bool("changed", changed))
}

func (t *LogTrace) CustomEvent(name string, attrs map[string]any) {
	fields := make([]zap.Field, 0, len(attrs)+1)
	fields = append(fields, zap.String("event", name))
	for k, v := range attrs {
		fields = append(fields, zap.Any(k, v))
	}
	t.Logger.Debug("custom_event", fields...)
}

var _ Trace = (*LogTrace)(nil)
