package raft

import "github.com/jathurchan/raftreplica/types"

// startRole is the null role held while the replica is not open, or
// while unwinding a failed/abandoned open (spec §4.3.4). It rejects
// every RPC and client request with ErrNotOpen.
type startRole struct{}

func (r *startRole) Open(ctx *replicaContext) error  { return nil }
func (r *startRole) Close(ctx *replicaContext) error { return nil }
func (r *startRole) Type() types.RoleKind            { return types.RoleStart }

func (r *startRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	return rejectAppend(ctx.term)
}

func (r *startRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	return rejectVote(ctx.term)
}

func (r *startRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	notOpen(respond)
}

func (r *startRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	notOpen(respond)
}

func (r *startRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	notOpen(respond)
}
