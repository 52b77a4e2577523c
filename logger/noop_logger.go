package logger

import "github.com/jathurchan/raftreplica/types"

// NoOpLogger is a Logger implementation that silently discards all log
// messages. Useful for testing, benchmarking, or disabling logging
// entirely. Each method can be optionally overridden for test assertions.
type NoOpLogger struct {
	DebugwFunc func(string, ...any)
	InfowFunc  func(string, ...any)
	WarnwFunc  func(string, ...any)
	ErrorwFunc func(string, ...any)
	FatalwFunc func(string, ...any)
}

// NewNoOpLogger returns a Logger that discards everything by default.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Debugw(msg string, kvs ...any) {
	if l.DebugwFunc != nil {
		l.DebugwFunc(msg, kvs...)
	}
}

func (l *NoOpLogger) Infow(msg string, kvs ...any) {
	if l.InfowFunc != nil {
		l.InfowFunc(msg, kvs...)
	}
}

func (l *NoOpLogger) Warnw(msg string, kvs ...any) {
	if l.WarnwFunc != nil {
		l.WarnwFunc(msg, kvs...)
	}
}

func (l *NoOpLogger) Errorw(msg string, kvs ...any) {
	if l.ErrorwFunc != nil {
		l.ErrorwFunc(msg, kvs...)
	}
}

// Fatalw calls FatalwFunc if set; unlike StdLogger it never terminates the
// process, so it is safe to exercise IllegalState paths in tests.
func (l *NoOpLogger) Fatalw(msg string, kvs ...any) {
	if l.FatalwFunc != nil {
		l.FatalwFunc(msg, kvs...)
	}
}

func (l *NoOpLogger) With(keysAndValues ...any) Logger    { return l }
func (l *NoOpLogger) WithNodeID(id types.NodeID) Logger   { return l }
func (l *NoOpLogger) WithTerm(term types.Term) Logger     { return l }
func (l *NoOpLogger) WithRole(role types.RoleKind) Logger { return l }
func (l *NoOpLogger) WithComponent(name string) Logger    { return l }
