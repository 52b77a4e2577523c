package raft

import (
	"fmt"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/logger"
	"github.com/jathurchan/raftreplica/rand"
)

// Dependencies bundles the external collaborators a Replica needs: the
// three collaborators spec §6 keeps external (LogStore, Transport,
// Cluster), the ambient stack (Logger, Metrics, Clock, Rand), and the
// caller-installed commit handler.
type Dependencies struct {
	// LogStore persists log entries; see spec §6.
	LogStore LogStore

	// Transport delivers RPC envelopes to and from peers.
	Transport Transport

	// Cluster resolves the local node identity/kind and peer membership.
	Cluster Cluster

	// Logger provides structured logging. Defaults to logger.NewNoOpLogger()
	// if nil.
	Logger logger.Logger

	// Metrics records operational counters/gauges. Defaults to a no-op
	// implementation if nil.
	Metrics Metrics

	// Clock abstracts timers so election/heartbeat timing can be replayed
	// deterministically in tests. Defaults to clock.New() if nil.
	Clock clock.Clock

	// Rand abstracts randomness for election-timeout jitter. Defaults to
	// rand.New() if nil.
	Rand rand.Rand

	// CommitHandler is invoked on the context thread once an entry commits
	// and applies; it receives the entry's key and payload and returns the
	// result buffer delivered to the waiting client request.
	CommitHandler func(key, entry []byte) ([]byte, error)
}

// Validate checks that all required collaborators are present. Logger,
// Metrics, Clock, and Rand are optional and receive no-op/standard
// defaults by the builder.
func (d *Dependencies) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: dependencies struct cannot be nil", ErrMissingDependencies)
	}
	if d.LogStore == nil {
		return fmt.Errorf("%w: LogStore cannot be nil", ErrMissingDependencies)
	}
	if d.Transport == nil {
		return fmt.Errorf("%w: Transport cannot be nil", ErrMissingDependencies)
	}
	if d.Cluster == nil {
		return fmt.Errorf("%w: Cluster cannot be nil", ErrMissingDependencies)
	}
	if d.CommitHandler == nil {
		return fmt.Errorf("%w: CommitHandler cannot be nil", ErrMissingDependencies)
	}
	return nil
}
