package raft

import "github.com/jathurchan/raftreplica/types"

// ClientResultFunc delivers the eventual outcome of a client read/write/
// delete request. It is always invoked on the context thread.
type ClientResultFunc func(types.ClientResult)

// Role is the closed six-variant state machine driving a replica's
// participation in the cluster protocol (spec §4.3). Implementations are
// tagged by Type() and dispatched by the owning replicaContext; a role
// never stores a back-reference to its context, receiving it explicitly
// on every call instead (Design Note §9, "shared context with back-
// references").
//
// Open/Close/handler calls all run on the context's single task-pump
// thread; construction and destruction are synchronous with respect to
// each other, so no handler ever runs during a transition. AppendEntries
// and RequestVote reply synchronously since answering them needs no
// suspension; client operations resolve via respond because they may
// wait on commit or a forwarded RPC round-trip.
type Role interface {
	// Open arms timers and issues any initial RPCs for the role.
	Open(ctx *replicaContext) error

	// Close cancels timers and releases per-role state.
	Close(ctx *replicaContext) error

	// Type reports the role's RoleKind tag.
	Type() types.RoleKind

	// HandleAppendEntries processes an AppendEntries RPC.
	HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply

	// HandleRequestVote processes a RequestVote RPC.
	HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply

	// HandleRead processes a client read request, eventually invoking respond.
	HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc)

	// HandleWrite processes a client write request, eventually invoking respond.
	HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc)

	// HandleDelete processes a client delete request, eventually invoking respond.
	HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc)
}

// notOpen immediately delivers ErrNotOpen, for roles encountered before
// open() completes (Start).
func notOpen(respond ClientResultFunc) {
	respond(types.ClientResult{Err: ErrNotOpen})
}

// noLeader immediately delivers ErrNoLeader, when no forwarding target is known.
func noLeader(respond ClientResultFunc) {
	respond(types.ClientResult{Err: ErrNoLeader})
}

// rejectVote replies to a RequestVote without granting, reporting term.
func rejectVote(term types.Term) *types.RequestVoteReply {
	return &types.RequestVoteReply{Term: term, VoteGranted: false}
}

// rejectAppend replies to an AppendEntries with success=false, reporting term.
func rejectAppend(term types.Term) *types.AppendEntriesReply {
	return &types.AppendEntriesReply{Term: term, Success: false}
}

// forwardRead forwards a read request to the known leader off-thread,
// delivering the outcome back on the pump via respond.
func forwardRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	if ctx.leader == types.NoLeader {
		noLeader(respond)
		return
	}
	leader := ctx.leader
	go func() {
		c, cancel := deadlineCtx(ctx)
		defer cancel()
		res, err := ctx.deps.Transport.ForwardRead(c, leader, req)
		ctx.submit(func() { deliverForwarded(res, err, respond) })
	}()
}

// forwardWrite forwards a write request to the known leader; see forwardRead.
func forwardWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	if ctx.leader == types.NoLeader {
		noLeader(respond)
		return
	}
	leader := ctx.leader
	go func() {
		c, cancel := deadlineCtx(ctx)
		defer cancel()
		res, err := ctx.deps.Transport.ForwardWrite(c, leader, req)
		ctx.submit(func() { deliverForwarded(res, err, respond) })
	}()
}

// forwardDelete forwards a delete request to the known leader; see forwardRead.
func forwardDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	if ctx.leader == types.NoLeader {
		noLeader(respond)
		return
	}
	leader := ctx.leader
	go func() {
		c, cancel := deadlineCtx(ctx)
		defer cancel()
		res, err := ctx.deps.Transport.ForwardDelete(c, leader, req)
		ctx.submit(func() { deliverForwarded(res, err, respond) })
	}()
}

func deliverForwarded(res *types.ClientResult, err error, respond ClientResultFunc) {
	if err != nil {
		respond(types.ClientResult{Err: err})
		return
	}
	respond(*res)
}
