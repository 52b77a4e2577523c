// Package logger provides structured, context-aware logging for the
// replica core and its adapters.
package logger

import "github.com/jathurchan/raftreplica/types"

// Logger defines structured, context-aware logging used throughout the
// replica core.
//
// All logging methods support structured output by accepting a message and
// a variadic list of key-value pairs. Keys must be strings and must
// alternate with values in the form: key1, val1, key2, val2, ...
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	// Fatalw logs a fatal-level message and then terminates the process.
	// The replica core never calls it: IllegalState invariant violations
	// (spec.md §7) are returned to the caller as errors.
	Fatalw(msg string, keysAndValues ...any)

	// Context enrichment methods return a new logger instance with
	// additional persistent context; the receiver is left unmodified.

	With(keysAndValues ...any) Logger
	WithNodeID(id types.NodeID) Logger
	WithTerm(term types.Term) Logger
	WithRole(role types.RoleKind) Logger
	WithComponent(name string) Logger
}
