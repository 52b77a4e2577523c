package raft

import "github.com/jathurchan/raftreplica/types"

// passiveRole is a non-voting learner (spec §4.3.4): it replicates the
// log exactly like Follower but never runs for election and never grants
// a vote.
type passiveRole struct{}

func (r *passiveRole) Open(ctx *replicaContext) error  { return nil }
func (r *passiveRole) Close(ctx *replicaContext) error { return nil }
func (r *passiveRole) Type() types.RoleKind            { return types.RolePassive }

func (r *passiveRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	if args.Term < ctx.term {
		return rejectAppend(ctx.term)
	}
	ctx.setTerm(args.Term)
	ctx.setLeader(args.LeaderID)
	return appendEntriesConsistencyCheck(ctx, args)
}

func (r *passiveRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	if args.Term > ctx.term {
		ctx.setTerm(args.Term)
	}
	return rejectVote(ctx.term)
}

func (r *passiveRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	forwardRead(ctx, req, respond)
}

func (r *passiveRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	forwardWrite(ctx, req, respond)
}

func (r *passiveRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	forwardDelete(ctx, req, respond)
}
