package raft

import "github.com/jathurchan/raftreplica/types"

// Cluster is the external collaborator resolving local node identity and
// cluster membership (spec §6). It is read-only from the core's
// perspective.
type Cluster interface {
	// LocalID returns the identity of the local node.
	LocalID() types.NodeID

	// LocalKind returns the local node's participation kind: Active,
	// Passive, or Remote.
	LocalKind() types.NodeKind

	// Members returns the set of known member node IDs, including the
	// local node.
	Members() []types.NodeID

	// Member reports whether id is a known member and its kind.
	Member(id types.NodeID) (types.NodeKind, bool)
}
