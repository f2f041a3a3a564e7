package core

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// logger is the package-wide sink for the non-fatal precondition tier of
// spec.md §7. Callers embedding the engine swap it out with SetLogger the way
// erigon's subsystems are handed a *zap.Logger at construction time; we keep
// a package-level default so core.Report and core.Trap work before any
// graph has been constructed.
var (
	loggerMu sync.RWMutex
	logger   *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
}

// SetLogger replaces the package-wide logger. Passing nil restores a no-op
// logger rather than panicking, so tests can silence output unconditionally.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func currentLogger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// FatalPrecondition is the error type raised by Trap. Its Is/As chain
// retains the pkg/errors stack trace so a recovered trap in tests or in the
// debug server's connection handler can be logged with a useful backtrace.
type FatalPrecondition struct {
	msg string
	err error
}

func (f *FatalPrecondition) Error() string { return f.msg }
func (f *FatalPrecondition) Unwrap() error { return f.err }

// Trap raises a fatal precondition (spec.md §7, tier 1): invalid arena
// offsets, cycles that would corrupt state, use of an invalidated graph or
// subgraph, type-identity mismatches, allocation failure, multi-thread graph
// update, and the other conditions §7 lists as unrecoverable. It panics with
// a stack-carrying error rather than calling os.Exit, so a host embedding the
// engine (or a test) can recover it at a boundary if it chooses to, but the
// default behavior — an unrecovered panic — is to abort the process, matching
// "trap and abort the process".
func Trap(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	err := errors.WithStack(&FatalPrecondition{msg: msg})
	currentLogger().Error("fatal precondition", zap.String("reason", msg), zap.StackSkip("stack", 1))
	panic(err)
}

// TrapIf traps when cond is false, mirroring the "precondition(cond, msg)"
// idiom the original C++ uses pervasively (original_source's precondition_failure).
func TrapIf(cond bool, format string, args ...any) {
	if !cond {
		Trap(format, args...)
	}
}

// Report logs a non-fatal precondition (spec.md §7, tier 2): conditions
// observed during teardown or other best-effort paths that should be visible
// to operators without aborting the process, e.g. "invalid graph update
// (access from multiple threads?)" observed while a graph is being torn down.
func Report(format string, args ...any) {
	currentLogger().Warn("non-fatal precondition", zap.String("reason", fmt.Sprintf(format, args...)))
}
