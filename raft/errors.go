package raft

import "errors"

// Sentinel errors for the replica core. Callers compare with errors.Is;
// call sites wrap with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrNotOpen is returned for operations attempted before open() or
	// after close().
	ErrNotOpen = errors.New("replica: not open")

	// ErrNoLeader is returned for a client request when no leader is known
	// and there is no forwarding target.
	ErrNoLeader = errors.New("replica: no leader known")

	// ErrIllegalState indicates an invariant-violation attempt: vote
	// reassignment, commit regression, and similar. These are bugs; the
	// caller must not recover from them internally.
	ErrIllegalState = errors.New("replica: illegal state transition")

	// ErrTimeout is returned when an RPC does not complete before its
	// deadline.
	ErrTimeout = errors.New("replica: operation timed out")

	// ErrTransport is returned for an underlying network failure. Recovered
	// by retry on the next heartbeat; never causes step-down on its own.
	ErrTransport = errors.New("replica: transport failure")

	// ErrStorageFault is returned for a log I/O failure. Fatal to the
	// current role: the role transitions to Start and open becomes false.
	ErrStorageFault = errors.New("replica: storage fault")

	// ErrAborted is returned when a request is superseded by a step-down
	// or a close.
	ErrAborted = errors.New("replica: request aborted")

	// ErrNotLeader is returned when a non-leader role receives a request
	// only the leader may service directly.
	ErrNotLeader = errors.New("replica: not the leader")

	// ErrWrongThread is returned by check_thread when the caller is not
	// executing on the replica's context thread.
	ErrWrongThread = errors.New("replica: operation not on context thread")

	// ErrNotFound is returned when a requested log entry or index is
	// unavailable (e.g. compacted away).
	ErrNotFound = errors.New("replica: entry not found")

	// ErrMissingDependencies is returned when a required collaborator is
	// nil in Dependencies or Config.
	ErrMissingDependencies = errors.New("replica: missing required dependency")

	// ErrConfigValidation is returned when Options fails validation.
	ErrConfigValidation = errors.New("replica: invalid configuration")

	// ErrUnknownRole is returned when a role transition names a RoleKind
	// the dispatcher does not recognise.
	ErrUnknownRole = errors.New("replica: unknown role kind")
)
