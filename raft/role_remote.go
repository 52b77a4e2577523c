package raft

import "github.com/jathurchan/raftreplica/types"

// remoteRole is a read-only observer (spec §4.3.4): it holds no
// persistent log, never participates in elections or replication, and
// only forwards client requests to the leader it learns of from
// whatever out-of-band membership signal sets ctx.leader.
type remoteRole struct{}

func (r *remoteRole) Open(ctx *replicaContext) error  { return nil }
func (r *remoteRole) Close(ctx *replicaContext) error { return nil }
func (r *remoteRole) Type() types.RoleKind            { return types.RoleRemote }

func (r *remoteRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	return rejectAppend(ctx.term)
}

func (r *remoteRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	return rejectVote(ctx.term)
}

func (r *remoteRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	forwardRead(ctx, req, respond)
}

func (r *remoteRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	forwardWrite(ctx, req, respond)
}

func (r *remoteRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	forwardDelete(ctx, req, respond)
}
