package raft

import (
	"time"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/types"
)

// candidateRole runs one election (spec §4.3.2). On entry it advances the
// term, votes for itself, and solicits votes from every peer; it
// terminates into Leader on majority, into Follower on a higher term or a
// leader's heartbeat, or restarts itself with a fresh term on timeout.
type candidateRole struct {
	timer  clock.Timer
	resetC chan time.Duration
	stopC  chan struct{}

	votes       map[types.NodeID]bool
	voteCount   int
	peerCount   int
	wonElection bool
}

func (r *candidateRole) Open(ctx *replicaContext) error {
	r.votes = make(map[types.NodeID]bool)
	r.voteCount = 1 // votes for self
	r.wonElection = false

	ctx.setTerm(ctx.term + 1)
	if err := ctx.setVotedFor(ctx.id); err != nil {
		ctx.logger.Errorw("candidate: failed to vote for self", "error", err)
		return err
	}

	members := ctx.deps.Cluster.Members()
	r.peerCount = len(members)

	r.resetC = make(chan time.Duration, 1)
	r.stopC = make(chan struct{})
	r.timer = ctx.clock.NewTimer(electionTimeout(ctx))
	go r.watch(ctx)

	lastIndex := ctx.log.lastIndex()
	lastTerm := ctx.log.termAt(lastIndex)
	args := &types.RequestVoteArgs{
		Term:         ctx.term,
		CandidateID:  ctx.id,
		LastLogIndex: lastIndex,
		LastLogTerm:  lastTerm,
	}
	ctx.metrics().ObserveElectionStarted(ctx.term)
	for _, peer := range members {
		if peer == ctx.id {
			continue
		}
		peer := peer
		ctx.sendRequestVote(peer, args, func(reply *types.RequestVoteReply, err error) {
			r.onVoteReply(ctx, peer, reply, err)
		})
	}
	r.checkMajority(ctx)
	return nil
}

func (r *candidateRole) Close(ctx *replicaContext) error {
	close(r.stopC)
	return nil
}

func (r *candidateRole) Type() types.RoleKind { return types.RoleCandidate }

func (r *candidateRole) watch(ctx *replicaContext) {
	for {
		select {
		case <-r.timer.Chan():
			ctx.submit(func() { onElectionTimeout(ctx) })
			return
		case d := <-r.resetC:
			drainTimer(r.timer)
			r.timer.Reset(d)
		case <-r.stopC:
			r.timer.Stop()
			return
		}
	}
}

// restart abandons the current election and begins a new one at a fresh
// term, without going through the generic transition (which is a no-op
// for same-kind targets per spec §4.1).
func (r *candidateRole) restart(ctx *replicaContext) {
	if err := r.Close(ctx); err != nil {
		ctx.logger.Errorw("candidate: restart close failed", "error", err)
	}
	next := &candidateRole{}
	ctx.role = next
	if err := next.Open(ctx); err != nil {
		ctx.logger.Errorw("candidate: restart open failed", "error", err)
	}
}

func (r *candidateRole) onVoteReply(ctx *replicaContext, peer types.NodeID, reply *types.RequestVoteReply, err error) {
	if r.wonElection || ctx.role != Role(r) {
		return // superseded by a later transition; stale reply
	}
	if err != nil {
		ctx.logger.Warnw("candidate: request vote failed", "peer", peer, "error", err)
		return
	}
	if reply.Term > ctx.term {
		ctx.setTerm(reply.Term)
		if err := ctx.transition(types.RoleFollower); err != nil {
			ctx.logger.Errorw("candidate: step down failed", "error", err)
		}
		return
	}
	if !reply.VoteGranted {
		return
	}
	if r.votes[peer] {
		return
	}
	r.votes[peer] = true
	r.voteCount++
	r.checkMajority(ctx)
}

func (r *candidateRole) checkMajority(ctx *replicaContext) {
	if r.wonElection {
		return
	}
	if r.voteCount >= types.Majority(r.peerCount) {
		r.wonElection = true
		if err := ctx.transition(types.RoleLeader); err != nil {
			ctx.logger.Errorw("candidate: transition to leader failed", "error", err)
		}
	}
}

func (r *candidateRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	if args.Term < ctx.term {
		return rejectAppend(ctx.term)
	}
	// A leader heartbeat at term >= ours ends the election (spec §4.3.2).
	ctx.setTerm(args.Term)
	if err := ctx.transition(types.RoleFollower); err != nil {
		ctx.logger.Errorw("candidate: step down to follower failed", "error", err)
		return rejectAppend(ctx.term)
	}
	return ctx.role.HandleAppendEntries(ctx, args)
}

func (r *candidateRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	if args.Term < ctx.term {
		return rejectVote(ctx.term)
	}
	if args.Term > ctx.term {
		ctx.setTerm(args.Term)
		if err := ctx.transition(types.RoleFollower); err != nil {
			ctx.logger.Errorw("candidate: step down on higher term vote failed", "error", err)
			return rejectVote(ctx.term)
		}
		return ctx.role.HandleRequestVote(ctx, args)
	}
	// Already voted for self this term; never grant a competing vote.
	return rejectVote(ctx.term)
}

func (r *candidateRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	forwardRead(ctx, req, respond)
}

func (r *candidateRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	forwardWrite(ctx, req, respond)
}

func (r *candidateRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	forwardDelete(ctx, req, respond)
}
