package raft

import "time"

// Default timing parameters. Spec §6 requires heartbeat_interval strictly
// less than election_timeout; these defaults keep a comfortable margin.
const (
	// DefaultElectionTimeout is the base election timeout; the follower's
	// actual timer fires somewhere in [ElectionTimeout, 2*ElectionTimeout).
	DefaultElectionTimeout = 150 * time.Millisecond

	// DefaultHeartbeatInterval is how often a leader sends AppendEntries
	// (possibly empty) to each peer.
	DefaultHeartbeatInterval = 30 * time.Millisecond

	// DefaultRPCDeadlineFraction bounds each outbound RPC's deadline to a
	// fraction of the election timeout, per spec §5 "Cancellation and timeouts".
	DefaultRPCDeadlineFraction = 0.5

	// DefaultMaxEntriesPerAppend caps entries sent in a single AppendEntries RPC.
	DefaultMaxEntriesPerAppend = 100

	// DefaultTaskQueueDepth is the buffer size of the context thread's task
	// pump channel, per Design Note §9.
	DefaultTaskQueueDepth = 256
)
