package raft

import (
	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/types"
)

// leaderRole drives log replication and serves client operations while
// holding leadership for the current term (spec §4.3.3).
type leaderRole struct {
	heartbeat clock.Ticker
	stopC     chan struct{}
}

func (r *leaderRole) Open(ctx *replicaContext) error {
	ctx.resetPeers(ctx.log.lastIndex())
	ctx.setLeader(ctx.id)

	// stopC is created before the fallible append below: a storage fault
	// here forces a reentrant transition to Start, which calls Close, which
	// closes stopC. It must already exist by then.
	r.stopC = make(chan struct{})

	// A no-op entry at the new term lets reads commit in this term without
	// waiting on a client write (spec §4.3.3 "On entry").
	if _, err := ctx.log.append(ctx.term, nil, nil, types.EntryNoOp); err != nil {
		ctx.failStorage(err)
		return err
	}

	r.heartbeat = ctx.clock.NewTicker(ctx.opts.HeartbeatInterval)
	go r.tick(ctx)

	r.replicateToAll(ctx, false)
	return nil
}

func (r *leaderRole) Close(ctx *replicaContext) error {
	close(r.stopC)
	ctx.abortWaiters()
	return nil
}

func (r *leaderRole) Type() types.RoleKind { return types.RoleLeader }

func (r *leaderRole) tick(ctx *replicaContext) {
	for {
		select {
		case <-r.heartbeat.Chan():
			ctx.submit(func() { r.replicateToAll(ctx, true) })
		case <-r.stopC:
			r.heartbeat.Stop()
			return
		}
	}
}

// replicateToAll sends AppendEntries to every peer not already in flight,
// triggered by the heartbeat timer or by a fresh client write (spec
// §4.3.3 "Replication loop"). heartbeat marks a round as a heartbeat-timer
// tick so its round-trips are recorded via ObserveHeartbeat in addition to
// ObserveReplication.
func (r *leaderRole) replicateToAll(ctx *replicaContext, heartbeat bool) {
	if ctx.role != Role(r) {
		return
	}
	for _, peer := range ctx.deps.Cluster.Members() {
		if peer == ctx.id {
			continue
		}
		r.replicateToPeer(ctx, peer, heartbeat)
	}
	// A leader with no peers never receives an AppendEntries reply, so the
	// commit index is also recomputed here.
	if ctx.role == Role(r) {
		r.recomputeCommit(ctx)
	}
}

func (r *leaderRole) replicateToPeer(ctx *replicaContext, peer types.NodeID, heartbeat bool) {
	p := ctx.peer(peer)
	if p.InFlight {
		return
	}
	prevIndex := p.NextIndex - 1
	prevTerm := ctx.log.termAt(prevIndex)
	lastIndex := ctx.log.lastIndex()

	var entries []types.LogEntry
	if lastIndex >= p.NextIndex {
		to := types.MinIndex(lastIndex, p.NextIndex+types.Index(ctx.opts.MaxEntriesPerAppend)-1)
		ents, err := ctx.log.entries(p.NextIndex, to)
		if err != nil {
			ctx.logger.Errorw("leader: read entries for replication failed", "peer", peer, "error", err)
			ctx.failStorage(err)
			return
		}
		entries = ents
	}

	args := &types.AppendEntriesArgs{
		Term:         ctx.term,
		LeaderID:     ctx.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: ctx.commitIndex,
	}
	sent := types.Index(len(entries))
	p.InFlight = true
	start := ctx.clock.Now()
	ctx.sendAppendEntries(peer, args, func(reply *types.AppendEntriesReply, err error) {
		if heartbeat {
			ctx.metrics().ObserveHeartbeat(peer, err == nil && reply != nil && reply.Success, ctx.clock.Since(start))
		}
		r.onAppendReply(ctx, peer, prevIndex, sent, reply, err)
	})
}

func (r *leaderRole) onAppendReply(
	ctx *replicaContext,
	peer types.NodeID,
	prevIndex types.Index,
	sent types.Index,
	reply *types.AppendEntriesReply,
	err error,
) {
	if ctx.role != Role(r) {
		return
	}
	p := ctx.peer(peer)
	p.InFlight = false
	if err != nil {
		ctx.logger.Warnw("leader: append entries failed", "peer", peer, "error", err)
		ctx.metrics().ObserveReplication(peer, int(sent), false)
		return
	}
	if reply.Term > ctx.term {
		ctx.setTerm(reply.Term)
		if terr := ctx.transition(types.RoleFollower); terr != nil {
			ctx.logger.Errorw("leader: step down failed", "error", terr)
		}
		return
	}
	if reply.Success {
		p.MatchIndex = prevIndex + sent
		p.NextIndex = p.MatchIndex + 1
		p.LastContact = ctx.clock.Now().UnixNano()
		ctx.metrics().ObserveReplication(peer, int(sent), true)
		r.recomputeCommit(ctx)
		return
	}
	ctx.metrics().ObserveReplication(peer, int(sent), false)
	// Log mismatch: back off next_index, preferring the conflicting
	// term's first index when the follower supplied one.
	if reply.ConflictIndex > 0 {
		p.NextIndex = reply.ConflictIndex
	} else if p.NextIndex > 1 {
		p.NextIndex--
	}
	r.replicateToPeer(ctx, peer, false)
}

// recomputeCommit finds the highest N > commit_index with term_at(N) ==
// context.term acknowledged by a majority of match_index (including
// self), and advances the commit index to it (spec §4.3.3).
func (r *leaderRole) recomputeCommit(ctx *replicaContext) {
	lastIndex := ctx.log.lastIndex()
	for n := lastIndex; n > ctx.commitIndex; n-- {
		if ctx.log.termAt(n) != ctx.term {
			continue
		}
		count := 1 // self
		for _, p := range ctx.peers {
			if p.MatchIndex >= n {
				count++
			}
		}
		if count >= types.Majority(len(ctx.peers)+1) {
			if err := ctx.setCommitIndex(n); err != nil {
				ctx.logger.Errorw("leader: commit index update failed", "error", err)
				return
			}
			ctx.applyCommitted()
			return
		}
	}
}

func (r *leaderRole) HandleWrite(ctx *replicaContext, req *types.WriteRequest, respond ClientResultFunc) {
	r.appendCommand(ctx, req.Key, req.Entry, respond)
}

func (r *leaderRole) HandleDelete(ctx *replicaContext, req *types.DeleteRequest, respond ClientResultFunc) {
	// Modelled as a command entry with a nil payload: spec.md defines no
	// distinct delete entry kind, so the commit handler distinguishes a
	// delete from a write by the nil Entry (DESIGN.md).
	r.appendCommand(ctx, req.Key, nil, respond)
}

func (r *leaderRole) appendCommand(ctx *replicaContext, key, entry []byte, respond ClientResultFunc) {
	index, err := ctx.log.append(ctx.term, key, entry, types.EntryCommand)
	if err != nil {
		ctx.failStorage(err)
		respond(types.ClientResult{Err: err})
		return
	}
	ch := ctx.registerWaiter(index)
	go func() {
		result := <-ch
		ctx.submit(func() { respond(result) })
	}()
	r.replicateToAll(ctx, false)
}

func (r *leaderRole) HandleRead(ctx *replicaContext, req *types.ReadRequest, respond ClientResultFunc) {
	switch req.Consistency {
	case types.Linearizable:
		r.confirmLeadership(ctx, func() {
			result, err := ctx.deps.CommitHandler(req.Key, nil)
			respond(types.ClientResult{Result: result, Err: err})
		})
	default:
		target := ctx.commitIndex
		ctx.registerReadWaiter(target, func() {
			result, err := ctx.deps.CommitHandler(req.Key, nil)
			respond(types.ClientResult{Result: result, Err: err})
		})
	}
}

// confirmLeadership exchanges a heartbeat round with a majority before
// invoking onConfirmed, serving Linearizable reads without appending a
// new entry (spec §4.3.3).
func (r *leaderRole) confirmLeadership(ctx *replicaContext, onConfirmed func()) {
	members := ctx.deps.Cluster.Members()
	if len(members) <= 1 {
		onConfirmed()
		return
	}
	term := ctx.term
	acked := 1 // self
	done := false
	for _, peer := range members {
		if peer == ctx.id {
			continue
		}
		p := ctx.peer(peer)
		prevIndex := p.NextIndex - 1
		args := &types.AppendEntriesArgs{
			Term:         ctx.term,
			LeaderID:     ctx.id,
			PrevLogIndex: prevIndex,
			PrevLogTerm:  ctx.log.termAt(prevIndex),
			LeaderCommit: ctx.commitIndex,
		}
		ctx.sendAppendEntries(peer, args, func(reply *types.AppendEntriesReply, err error) {
			if done || ctx.role != Role(r) || ctx.term != term || err != nil {
				return
			}
			if reply.Term > ctx.term {
				ctx.setTerm(reply.Term)
				if terr := ctx.transition(types.RoleFollower); terr != nil {
					ctx.logger.Errorw("leader: step down during read confirmation failed", "error", terr)
				}
				done = true
				return
			}
			acked++
			if !done && acked >= types.Majority(len(members)) {
				done = true
				onConfirmed()
			}
		})
	}
}

func (r *leaderRole) HandleAppendEntries(ctx *replicaContext, args *types.AppendEntriesArgs) *types.AppendEntriesReply {
	if args.Term <= ctx.term {
		return rejectAppend(ctx.term)
	}
	ctx.setTerm(args.Term)
	if err := ctx.transition(types.RoleFollower); err != nil {
		ctx.logger.Errorw("leader: step down failed", "error", err)
		return rejectAppend(ctx.term)
	}
	return ctx.role.HandleAppendEntries(ctx, args)
}

func (r *leaderRole) HandleRequestVote(ctx *replicaContext, args *types.RequestVoteArgs) *types.RequestVoteReply {
	if args.Term <= ctx.term {
		return rejectVote(ctx.term)
	}
	ctx.setTerm(args.Term)
	if err := ctx.transition(types.RoleFollower); err != nil {
		ctx.logger.Errorw("leader: step down on vote request failed", "error", err)
		return rejectVote(ctx.term)
	}
	return ctx.role.HandleRequestVote(ctx, args)
}
