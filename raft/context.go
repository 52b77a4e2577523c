package raft

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jathurchan/raftreplica/clock"
	"github.com/jathurchan/raftreplica/logger"
	"github.com/jathurchan/raftreplica/rand"
	"github.com/jathurchan/raftreplica/types"
)

// replicaContext is the authoritative mutable state of one replica (spec
// §3 "Replica Context") plus the single-threaded execution anchor every
// mutation funnels through. All exported-looking setters below are only
// ever called from inside a task submitted to the pump; callers from
// other goroutines must go through Replica.submit.
type replicaContext struct {
	id types.NodeID

	term             types.Term
	leader           types.NodeID
	votedFor         types.NodeID
	version          uint64
	commitIndex      types.Index
	firstCommitIndex types.Index
	firstCommitSet   bool
	lastApplied      types.Index
	recycleIndex     types.Index
	recovering       bool
	isOpen           bool

	peers map[types.NodeID]*types.PeerState

	role Role
	log  *logView

	opts   Options
	deps   Dependencies
	logger logger.Logger
	clock  clock.Clock
	rand   rand.Rand

	termProv *termProvider

	// onPump reports whether the calling goroutine is currently executing
	// inside a task popped from the pump. Since exactly one goroutine ever
	// drains the pump, this stands in for the original's thread-identity
	// check (Design Note: task-pump rewrite) without needing real
	// goroutine ids.
	onPump atomic.Bool

	// waiters resolves client write/delete futures once their entry
	// commits and applies; keyed by log index.
	waiters map[types.Index]chan types.ClientResult

	// readWaiters fires once lastApplied reaches the keyed index,
	// servicing Sequential reads that arrived before the state machine
	// caught up to the commit index observed at request time.
	readWaiters map[types.Index][]func()

	// submit enqueues a closure onto the owning Replica's task pump. Set
	// once by Replica at construction; roles use it to schedule
	// continuations after an RPC round-trip completes off-thread.
	submit func(func())

	// onStorageFault notifies the owning Replica that failStorage forced
	// the replica closed, so goroutine-safe state outside the context
	// (Replica.opened) stays consistent. Set once by Replica at
	// construction; nil-safe for contexts built directly in tests.
	onStorageFault func()
}

func newReplicaContext(id types.NodeID, opts Options, deps Dependencies) *replicaContext {
	lg := deps.Logger
	if lg == nil {
		lg = logger.NewNoOpLogger()
	}
	cl := deps.Clock
	if cl == nil {
		cl = clock.New()
	}
	rd := deps.Rand
	if rd == nil {
		rd = rand.New()
	}
	return &replicaContext{
		id:          id,
		opts:        opts,
		deps:        deps,
		logger:      lg.WithNodeID(id),
		clock:       cl,
		rand:        rd,
		peers:       make(map[types.NodeID]*types.PeerState),
		log:         newLogView(deps.LogStore),
		waiters:     make(map[types.Index]chan types.ClientResult),
		readWaiters: make(map[types.Index][]func()),
		termProv:    newTermProvider(len(deps.Cluster.Members())),
		role:        &startRole{},
	}
}

// notifyTermChange publishes the current term/leader/member view to every
// registered TermProvider listener (spec.md §6: "listeners invoked on each
// term change"). Called by setTerm/setLeader whenever either observes a
// change.
func (c *replicaContext) notifyTermChange() {
	members := c.deps.Cluster.Members()
	c.termProv.notify(c.termProv.toTerm(c.term, c.leader, members))
}

// metrics returns the configured Metrics collaborator, or a no-op.
func (c *replicaContext) metrics() Metrics {
	if c.deps.Metrics == nil {
		return NewNoOpMetrics()
	}
	return c.deps.Metrics
}

// checkThread fails unless the caller is executing inside a pumped task.
func (c *replicaContext) checkThread() error {
	if !c.onPump.Load() {
		return ErrWrongThread
	}
	return nil
}

// setTerm implements spec §4.1 set_term. A strictly greater term resets
// leader and votedFor (a new epoch has no leader or vote yet).
func (c *replicaContext) setTerm(t types.Term) {
	if t <= c.term {
		return
	}
	old := c.term
	c.term = t
	c.leader = types.NoLeader
	c.votedFor = types.NoVote
	c.logger.Infow("term advanced", "old_term", old, "new_term", t)
	c.metrics().ObserveTerm(t)
	c.notifyTermChange()
}

// setLeader implements spec §4.1 set_leader.
func (c *replicaContext) setLeader(l types.NodeID) {
	old := c.leader
	c.leader = l
	if old != l {
		c.logger.Infow("leader changed", "old_leader", old, "new_leader", l, "term", c.term)
		c.metrics().ObserveLeaderChange(l, c.term)
		c.notifyTermChange()
	}
}

// setVotedFor implements spec §4.1 set_voted_for.
func (c *replicaContext) setVotedFor(candidate types.NodeID) error {
	if candidate != types.NoVote {
		if c.votedFor != types.NoVote && c.votedFor != candidate {
			return fmt.Errorf("%w: already voted for %s in term %d", ErrIllegalState, c.votedFor, c.term)
		}
		if c.leader != types.NoLeader {
			return fmt.Errorf("%w: cannot vote while leader %s is known", ErrIllegalState, c.leader)
		}
	}
	c.votedFor = candidate
	return nil
}

// setCommitIndex implements spec §4.1 set_commit_index.
func (c *replicaContext) setCommitIndex(i types.Index) error {
	if i < c.commitIndex {
		return fmt.Errorf("%w: commit index cannot regress from %d to %d", ErrIllegalState, c.commitIndex, i)
	}
	if !c.firstCommitSet {
		c.firstCommitIndex = i
		c.firstCommitSet = true
		c.recovering = true
	}
	c.commitIndex = i
	c.metrics().ObserveCommitIndex(i)
	return nil
}

// setLastApplied implements spec §4.1 set_last_applied.
func (c *replicaContext) setLastApplied(i types.Index) error {
	if i < c.lastApplied {
		return fmt.Errorf("%w: last applied cannot regress from %d to %d", ErrIllegalState, c.lastApplied, i)
	}
	if i > c.commitIndex {
		return fmt.Errorf("%w: last applied %d cannot exceed commit index %d", ErrIllegalState, i, c.commitIndex)
	}
	c.lastApplied = i
	if c.recovering && i >= c.firstCommitIndex {
		c.recovering = false
	}
	c.metrics().ObserveAppliedIndex(i)
	return nil
}

// setRecycleIndex implements spec §4.1 set_recycle_index. Advancement
// policy is an external collaborator contract per Design Note §9, not
// invented here.
func (c *replicaContext) setRecycleIndex(i types.Index) error {
	if i < c.recycleIndex {
		return fmt.Errorf("%w: recycle index cannot regress from %d to %d", ErrIllegalState, c.recycleIndex, i)
	}
	c.recycleIndex = i
	return nil
}

// setVersion implements spec §4.1 set_version: version is treated as an
// opaque monotone counter reported by the Cluster collaborator (SPEC_FULL
// §10 resolves the source's unstated producer this way).
func (c *replicaContext) setVersion(v uint64) {
	if v > c.version {
		c.version = v
	}
}

// transition implements spec §4.1 transition: no-op if already the
// target kind; otherwise closes the current role and synchronously opens
// the new one.
func (c *replicaContext) transition(kind types.RoleKind) error {
	if c.role != nil && c.role.Type() == kind {
		return nil
	}
	from := types.RoleStart
	if c.role != nil {
		from = c.role.Type()
		if err := c.role.Close(c); err != nil {
			return err
		}
	}
	next, err := newRole(kind)
	if err != nil {
		return err
	}
	c.role = next
	c.metrics().ObserveRoleChange(from, kind, c.term)
	c.logger.Infow("role transition", "from", from.String(), "to", kind.String(), "term", c.term)
	if err := next.Open(c); err != nil {
		return err
	}
	return nil
}

// failStorage enforces the policy documented on ErrStorageFault (spec §7):
// a log I/O failure is fatal to the current role, forcing a transition to
// Start and marking the replica no longer open. Returns false (a no-op)
// if err is not a storage fault. Callers that observe a storage fault
// from ctx.log must route it through here rather than just logging it.
func (c *replicaContext) failStorage(err error) bool {
	if !errors.Is(err, ErrStorageFault) {
		return false
	}
	c.logger.Errorw("storage fault: forcing role to Start", "error", err)
	if c.role == nil || c.role.Type() != types.RoleStart {
		if terr := c.transition(types.RoleStart); terr != nil {
			c.logger.Errorw("storage fault: transition to Start failed", "error", terr)
		}
	}
	c.isOpen = false
	if c.onStorageFault != nil {
		c.onStorageFault()
	}
	return true
}

// newRole constructs the per-variant struct for kind. Roles are a closed
// set dispatched by tag (Design Note §9); no reflection.
func newRole(kind types.RoleKind) (Role, error) {
	switch kind {
	case types.RoleStart:
		return &startRole{}, nil
	case types.RolePassive:
		return &passiveRole{}, nil
	case types.RoleRemote:
		return &remoteRole{}, nil
	case types.RoleFollower:
		return &followerRole{}, nil
	case types.RoleCandidate:
		return &candidateRole{}, nil
	case types.RoleLeader:
		return &leaderRole{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, kind)
	}
}

// status snapshots the context's fields into the public RaftStatus view.
func (c *replicaContext) status() types.RaftStatus {
	roleKind := types.RoleStart
	if c.role != nil {
		roleKind = c.role.Type()
	}
	return types.RaftStatus{
		ID:          c.id,
		Term:        c.term,
		Role:        roleKind,
		Leader:      c.leader,
		CommitIndex: c.commitIndex,
		LastApplied: c.lastApplied,
		RecycleIdx:  c.recycleIndex,
		Recovering:  c.recovering,
	}
}

// peer returns (creating if absent) the PeerState bookkeeping for id.
func (c *replicaContext) peer(id types.NodeID) *types.PeerState {
	p, ok := c.peers[id]
	if !ok {
		p = &types.PeerState{}
		c.peers[id] = p
	}
	return p
}

// resetPeers rebuilds the peer table for a fresh leadership term, per
// spec §4.3.3 "On entry": next_index = last_local_index+1, match_index=0.
func (c *replicaContext) resetPeers(lastIndex types.Index) {
	c.peers = make(map[types.NodeID]*types.PeerState, len(c.peers))
	for _, id := range c.deps.Cluster.Members() {
		if id == c.id {
			continue
		}
		c.peers[id] = &types.PeerState{NextIndex: lastIndex + 1, MatchIndex: 0}
	}
}

// registerWaiter installs a channel that resolves when index commits and
// applies, used by client Write/Delete (spec §4.3.3 "Client operations").
func (c *replicaContext) registerWaiter(index types.Index) chan types.ClientResult {
	ch := make(chan types.ClientResult, 1)
	c.waiters[index] = ch
	return ch
}

// resolveWaiter delivers result to the waiter registered at index, if any.
func (c *replicaContext) resolveWaiter(index types.Index, result types.ClientResult) {
	ch, ok := c.waiters[index]
	if !ok {
		return
	}
	delete(c.waiters, index)
	ch <- result
}

// abortWaiters resolves every pending waiter with ErrAborted, used on
// step-down or close per spec §5 "Cancellation and timeouts".
func (c *replicaContext) abortWaiters() {
	for index, ch := range c.waiters {
		delete(c.waiters, index)
		ch <- types.ClientResult{Err: ErrAborted}
	}
}

// deadlineCtx returns a context bounded by the replica's configured RPC
// deadline, used for both peer RPCs and client-request forwarding.
func deadlineCtx(c *replicaContext) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opts.RPCDeadline())
}

// sendAppendEntries issues AppendEntries to peer off-thread and delivers
// the outcome back onto the pump via onReply, modelling the "suspension
// point" an RPC round-trip represents per spec §5. Deadline is bounded to
// Options.RPCDeadline, never exceeding election_timeout/2.
func (c *replicaContext) sendAppendEntries(
	peer types.NodeID,
	args *types.AppendEntriesArgs,
	onReply func(*types.AppendEntriesReply, error),
) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RPCDeadline())
		defer cancel()
		reply, err := c.deps.Transport.SendAppendEntries(ctx, peer, args)
		c.submit(func() { onReply(reply, err) })
	}()
}

// applyCommitted hands every entry between lastApplied+1 and commitIndex
// to the commit handler, in order, resolving any client waiter registered
// at that index and firing any Sequential-read waiter now satisfied.
// Called by every role after its commit index advances, so invariant 7
// ("a committed entry is eventually reflected in last_applied") holds
// regardless of which role is active.
func (c *replicaContext) applyCommitted() {
	for idx := c.lastApplied + 1; idx <= c.commitIndex; idx++ {
		entries, err := c.log.entries(idx, idx)
		if err != nil || len(entries) == 0 {
			c.logger.Errorw("apply: missing entry for committed index", "index", idx, "error", err)
			if err != nil {
				c.failStorage(err)
			}
			break
		}
		entry := entries[0]
		result, cerr := c.deps.CommitHandler(entry.Key, entry.Entry)
		if err := c.setLastApplied(idx); err != nil {
			c.logger.Errorw("apply: failed to advance last applied", "index", idx, "error", err)
			break
		}
		c.resolveWaiter(idx, types.ClientResult{Result: result, Err: cerr})
		c.fireReadWaiters(idx)
	}
}

// registerReadWaiter invokes fn once lastApplied reaches target, or
// immediately if it already has.
func (c *replicaContext) registerReadWaiter(target types.Index, fn func()) {
	if c.lastApplied >= target {
		fn()
		return
	}
	c.readWaiters[target] = append(c.readWaiters[target], fn)
}

// fireReadWaiters invokes and clears every read waiter registered at or
// below upTo.
func (c *replicaContext) fireReadWaiters(upTo types.Index) {
	for idx, fns := range c.readWaiters {
		if idx > upTo {
			continue
		}
		for _, fn := range fns {
			fn()
		}
		delete(c.readWaiters, idx)
	}
}

// sendRequestVote issues RequestVote to peer off-thread, see sendAppendEntries.
func (c *replicaContext) sendRequestVote(
	peer types.NodeID,
	args *types.RequestVoteArgs,
	onReply func(*types.RequestVoteReply, error),
) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RPCDeadline())
		defer cancel()
		reply, err := c.deps.Transport.SendRequestVote(ctx, peer, args)
		c.submit(func() { onReply(reply, err) })
	}()
}
