package raft

import (
	"time"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/types"
)

// followerRole is the initial role for an Active node (spec §4.3.1). It
// maintains an election timer, randomised within [election_timeout,
// 2*election_timeout), reset on a valid heartbeat or a granted vote. There
// is no snapshot installation.
type followerRole struct {
	timer  clock.Timer
	resetC chan time.Duration
	stopC  chan struct{}
}

func (r *followerRole) Open(ctx *replicaContext) error {
	r.resetC = make(chan time.Duration, 1)
	r.stopC = make(chan struct{})
	r.timer = ctx.clock.NewTimer(electionTimeout(ctx))
	go r.watch(ctx)
	return nil
}

func (r *followerRole) Close(ctx *replicaContext) error {
	close(r.stopC)
	return nil
}

func (r *followerRole) Type() types.RoleKind { return types.RoleFollower }

// watch owns the timer off the context thread; expiry is submitted back
// onto the pump, never acted on directly.
func (r *followerRole) watch(ctx *replicaContext) {
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

// resetTimer requests the watcher goroutine rearm the election timer with
// a freshly drawn timeout. Safe to call from the context thread; never
// blocks it.
func (r *followerRole) resetTimer(ctx *replicaContext) {
	select {
	case r.resetC <- electionTimeout(ctx):
	default:
	}
}

// drainTimer implements the standard safe-reset dance for a timer that may
// have already fired concurrently with Stop.
func drainTimer(t clock.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

// electionTimeout draws a duration uniformly from [ElectionTimeout, 2*ElectionTimeout).
func electionTimeout(ctx *replicaContext) time.Duration {
	base := ctx.opts.ElectionTimeout
	return base + time.Duration(ctx.rand.Float64()*float64(base))
}

// onElectionTimeout fires on the context thread when no role has reset
// the timer in time. Followers and Candidates both reach here through
// their own Open-installed watcher; what happens next is role-specific,
// so this only asks the context to start (or restart) an election.
func onElectionTimeout(ctx *replicaContext) {
	if ctx.role.Type() != types.RoleFollower && ctx.role.Type() != types.RoleCandidate {
		return // stale timeout from a role already closed
	}
	if ctx.role.Type() == types.RoleCandidate {
		ctx.role.(*candidateRole).restart(ctx)
		return
	}
	if err := ctx.transition(types.RoleCandidate); err != nil {
		ctx.logger.Errorw("follower: failed to transition to candidate", "error", err)
	}
}

func (r *followerRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	if args.Term < ctx.term {
		return rejectAppend(ctx.term)
	}
	ctx.setTerm(args.Term)
	ctx.setLeader(args.LeaderID)
	r.resetTimer(ctx)
	return appendEntriesConsistencyCheck(ctx, args)
}

// appendEntriesConsistencyCheck implements the shared AppendEntries body
// used by Follower and Passive (spec §4.3.1, §4.3.4): reject on a log-
// matching failure, else splice in the supplied entries and advance the
// commit index.
func appendEntriesConsistencyCheck(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	if args.PrevLogIndex > 0 {
		localTerm := ctx.log.termAt(args.PrevLogIndex)
		if localTerm == 0 || localTerm != args.PrevLogTerm {
			return &types.AppendEntriesReply{
				Term:          ctx.term,
				Success:       false,
				ConflictIndex: conflictIndex(ctx, args.PrevLogIndex),
				ConflictTerm:  localTerm,
			}
		}
	}
	for _, entry := range args.Entries {
		localTerm := ctx.log.termAt(entry.Index)
		if localTerm == entry.Term {
			continue
		}
		if localTerm != 0 {
			if err := ctx.log.truncateSuffix(entry.Index); err != nil {
				ctx.logger.Errorw("append entries: truncate failed", "index", entry.Index, "error", err)
				ctx.failStorage(err)
				return rejectAppend(ctx.term)
			}
		}
		if _, err := ctx.log.append(entry.Term, entry.Key, entry.Entry, entry.Kind); err != nil {
			ctx.logger.Errorw("append entries: append failed", "index", entry.Index, "error", err)
			ctx.failStorage(err)
			return rejectAppend(ctx.term)
		}
	}
	if args.LeaderCommit > ctx.commitIndex {
		newCommit := types.MinIndex(args.LeaderCommit, ctx.log.lastIndex())
		if err := ctx.setCommitIndex(newCommit); err != nil {
			ctx.logger.Errorw("append entries: commit index update failed", "error", err)
		} else {
			ctx.applyCommitted()
		}
	}
	return &types.AppendEntriesReply{Term: ctx.term, Success: true}
}

// conflictIndex returns the first index of the conflicting term at
// prevIndex, the optimisation spec §4.3.3 allows a follower to return so a
// leader can skip straight past an entire mismatched term.
func conflictIndex(ctx *replicaContext, prevIndex types.Index) types.Index {
	term := ctx.log.termAt(prevIndex)
	if term == 0 {
		return ctx.log.lastIndex() + 1
	}
	idx := prevIndex
	for idx > ctx.log.firstIndex() && ctx.log.termAt(idx-1) == term {
		idx--
	}
	return idx
}

func (r *followerRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	if args.Term < ctx.term {
		return rejectVote(ctx.term)
	}
	if args.Term > ctx.term {
		ctx.setTerm(args.Term)
	}
	if ctx.votedFor != types.NoVote && ctx.votedFor != args.CandidateID {
		return rejectVote(ctx.term)
	}
	if !logUpToDate(ctx, args.LastLogIndex, args.LastLogTerm) {
		return rejectVote(ctx.term)
	}
	if err := ctx.setVotedFor(args.CandidateID); err != nil {
		ctx.logger.Warnw("follower: vote rejected by context", "candidate", args.CandidateID, "error", err)
		return rejectVote(ctx.term)
	}
	r.resetTimer(ctx)
	ctx.metrics().ObserveVoteGranted(ctx.term, args.CandidateID)
	return &types.RequestVoteReply{Term: ctx.term, VoteGranted: true}
}

// logUpToDate reports whether a candidate's (lastLogTerm, lastLogIndex) is
// at least as up-to-date as the local log, per spec §4.3.1's lexicographic
// comparison.
func logUpToDate(ctx *replicaContext, candidateIndex types.Index, candidateTerm types.Term) bool {
	localIndex := ctx.log.lastIndex()
	localTerm := ctx.log.termAt(localIndex)
	if candidateTerm != localTerm {
		return candidateTerm > localTerm
	}
	return candidateIndex >= localIndex
}

func (r *followerRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	forwardRead(ctx, req, respond)
}

func (r *followerRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	forwardWrite(ctx, req, respond)
}

func (r *followerRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	forwardDelete(ctx, req, respond)
}
