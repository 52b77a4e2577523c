package raft

import (
	"context"

	"github.com/jathurchan/raftreplica/types"
)

// Transport is the external collaborator delivering RPC envelopes between
// peers and relaying client requests to the leader (spec §6). Every
// response carries the responder's current term so the core can observe
// higher terms and step down.
type Transport interface {
	// SendAppendEntries sends an AppendEntries RPC to peer and returns its
	// reply, or an error wrapping ErrTransport/ErrTimeout.
	SendAppendEntries(
		ctx context.Context,
		peer types.NodeID,
		args *types.AppendEntriesArgs,
	) (*types.AppendEntriesReply, error)

	// SendRequestVote sends a RequestVote RPC to peer and returns its
	// reply, or an error wrapping ErrTransport/ErrTimeout.
	SendRequestVote(
		ctx context.Context,
		peer types.NodeID,
		args *types.RequestVoteArgs,
	) (*types.RequestVoteReply, error)

	// ForwardRead forwards a client read to the given leader.
	ForwardRead(ctx context.Context, leader types.NodeID, req *types.ReadRequest) (*types.ClientResult, error)

	// ForwardWrite forwards a client write to the given leader.
	ForwardWrite(ctx context.Context, leader types.NodeID, req *types.WriteRequest) (*types.ClientResult, error)

	// ForwardDelete forwards a client delete to the given leader.
	ForwardDelete(ctx context.Context, leader types.NodeID, req *types.DeleteRequest) (*types.ClientResult, error)
}
