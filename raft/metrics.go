package raft

import (
	"time"

	"github.com/jathurchan/raftreplica/types"
)

// Metrics records operational counters and gauges for the replica core.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveTerm sets the current term gauge.
	ObserveTerm(term types.Term)

	// ObserveCommitIndex sets the commit index gauge.
	ObserveCommitIndex(index types.Index)

	// ObserveAppliedIndex sets the last-applied index gauge.
	ObserveAppliedIndex(index types.Index)

	// ObserveRoleChange records a role transition.
	ObserveRoleChange(from, to types.RoleKind, term types.Term)

	// ObserveLeaderChange records a change of believed leader.
	ObserveLeaderChange(leader types.NodeID, term types.Term)

	// ObserveElectionStarted records the start of a new election.
	ObserveElectionStarted(term types.Term)

	// ObserveVoteGranted records that this node granted a vote.
	ObserveVoteGranted(term types.Term, candidate types.NodeID)

	// ObserveHeartbeat records the outcome and latency of a heartbeat/
	// AppendEntries round-trip to a peer.
	ObserveHeartbeat(peer types.NodeID, success bool, latency time.Duration)

	// ObserveReplication records the outcome of replicating entries to a peer.
	ObserveReplication(peer types.NodeID, entries int, success bool)

	// ObserveClientRequest records a client request outcome, labeled by
	// operation ("read"/"write"/"delete") and result.
	ObserveClientRequest(op string, success bool, latency time.Duration)
}

// noOpMetrics discards every observation.
type noOpMetrics struct{}

// NewNoOpMetrics returns a Metrics implementation that discards everything.
func NewNoOpMetrics() Metrics { return &noOpMetrics{} }

func (m *noOpMetrics) ObserveTerm(types.Term)                                       {}
func (m *noOpMetrics) ObserveCommitIndex(types.Index)                               {}
func (m *noOpMetrics) ObserveAppliedIndex(types.Index)                              {}
func (m *noOpMetrics) ObserveRoleChange(from, to types.RoleKind, term types.Term)   {}
func (m *noOpMetrics) ObserveLeaderChange(types.NodeID, types.Term)                 {}
func (m *noOpMetrics) ObserveElectionStarted(types.Term)                           {}
func (m *noOpMetrics) ObserveVoteGranted(types.Term, types.NodeID)                 {}
func (m *noOpMetrics) ObserveHeartbeat(types.NodeID, bool, time.Duration)          {}
func (m *noOpMetrics) ObserveReplication(types.NodeID, int, bool)                  {}
func (m *noOpMetrics) ObserveClientRequest(string, bool, time.Duration)            {}
