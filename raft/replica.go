package raft

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jathurchan/raftreplica/types"
)

// Replica is the top-level façade owning the task-pump goroutine: the
// single execution context every mutation of replicaContext funnels
// through (spec §3 "Lifecycle", §5 "Scheduling model"). All exported
// methods are safe to call from any goroutine; they submit work onto the
// pump and wait for the result.
type Replica struct {
	ctx *replicaContext

	tasks  chan func()
	stopWg sync.WaitGroup
	closed atomic.Bool

	// opened mirrors replicaContext.isOpen for goroutines outside the pump
	// (e.g. Gateway.dispatch): isOpen itself is only ever safe to read from
	// on the pump thread, and before Open starts the pump no task submitted
	// onto r.tasks would ever be drained.
	opened atomic.Bool
}

// New constructs a Replica from the given dependencies. The replica is
// not open until Open is called.
func New(id types.NodeID, opts Options, deps Dependencies) (*Replica, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	r := &Replica{
		ctx:   newReplicaContext(id, opts, deps),
		tasks: make(chan func(), opts.TaskQueueDepth),
	}
	r.ctx.submit = r.submit
	r.ctx.onStorageFault = func() { r.opened.Store(false) }
	r.ctx.termProv.getTerm = func(ctx context.Context) (types.TermDescriptor, error) {
		if !r.IsOpen() {
			return types.TermDescriptor{}, ErrNotOpen
		}
		done := make(chan types.TermDescriptor, 1)
		r.submit(func() {
			done <- r.ctx.termProv.toTerm(r.ctx.term, r.ctx.leader, r.ctx.deps.Cluster.Members())
		})
		select {
		case desc := <-done:
			return desc, nil
		case <-ctx.Done():
			return types.TermDescriptor{}, ctx.Err()
		}
	}
	return r, nil
}

// submit enqueues fn onto the pump. Safe from any goroutine, including
// the pump itself.
func (r *Replica) submit(fn func()) {
	if r.closed.Load() {
		return
	}
	select {
	case r.tasks <- fn:
	default:
		// Queue saturated: drop rather than block the caller, mirroring
		// spec §5's non-blocking submission contract. The pump catches up
		// as soon as a slot frees.
		r.ctx.logger.Warnw("task queue saturated, dropping task")
	}
}

// run is the pump loop: the only goroutine ever allowed to touch
// replicaContext's fields directly.
func (r *Replica) run() {
	defer r.stopWg.Done()
	for fn := range r.tasks {
		r.ctx.onPump.Store(true)
		fn()
		r.ctx.onPump.Store(false)
	}
}

// Open starts the pump, opens the log store, and transitions into the
// role appropriate for the local node's kind (spec §3 "Lifecycle"). If
// any step fails, the attempt unwinds: storage is closed and the role is
// left at Start (spec §5 "Cancellation and timeouts").
func (r *Replica) Open(ctx context.Context) error {
	r.stopWg.Add(1)
	go r.run()

	done := make(chan error, 1)
	r.submit(func() {
		done <- r.openOnPump()
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Replica) openOnPump() error {
	if r.ctx.isOpen {
		return nil
	}
	if err := r.ctx.deps.LogStore.Open(); err != nil {
		return err
	}
	kind := r.ctx.deps.Cluster.LocalKind()
	var roleKind types.RoleKind
	switch kind {
	case types.NodePassive:
		roleKind = types.RolePassive
	case types.NodeRemote:
		roleKind = types.RoleRemote
	default:
		roleKind = types.RoleFollower
	}
	if err := r.ctx.transition(roleKind); err != nil {
		_ = r.ctx.deps.LogStore.Close()
		_ = r.ctx.transition(types.RoleStart)
		return err
	}
	r.ctx.isOpen = true
	r.opened.Store(true)
	return nil
}

// Close transitions to Start, closes the log store, aborts every pending
// waiter, and stops the pump.
func (r *Replica) Close(ctx context.Context) error {
	done := make(chan error, 1)
	r.submit(func() {
		done <- r.closeOnPump()
	})
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if r.closed.CompareAndSwap(false, true) {
		close(r.tasks)
		r.stopWg.Wait()
	}
	return err
}

func (r *Replica) closeOnPump() error {
	if !r.ctx.isOpen {
		return nil
	}
	r.ctx.abortWaiters()
	terr := r.ctx.transition(types.RoleStart)
	serr := r.ctx.deps.LogStore.Close()
	r.ctx.isOpen = false
	r.opened.Store(false)
	if terr != nil {
		return terr
	}
	return serr
}

// Status returns a diagnostic snapshot of the replica's current state.
func (r *Replica) Status(ctx context.Context) (types.RaftStatus, error) {
	if r.closed.Load() {
		// The pump no longer accepts tasks; wait for it to exit and read
		// the final state directly.
		r.stopWg.Wait()
		return r.ctx.status(), nil
	}
	done := make(chan types.RaftStatus, 1)
	r.submit(func() { done <- r.ctx.status() })
	select {
	case st := <-done:
		return st, nil
	case <-ctx.Done():
		return types.RaftStatus{}, ctx.Err()
	}
}

// HandleAppendEntries dispatches an inbound AppendEntries RPC to the
// current role, on the pump thread.
func (r *Replica) HandleAppendEntries(ctx context.Context, args *types.AppendEntriesArgs) (*types.AppendEntriesReply, error) {
	done := make(chan *types.AppendEntriesReply, 1)
	r.submit(func() { done <- r.ctx.role.HandleAppendEntries(r.ctx, args) })
	select {
	case reply := <-done:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleRequestVote dispatches an inbound RequestVote RPC to the current
// role, on the pump thread.
func (r *Replica) HandleRequestVote(ctx context.Context, args *types.RequestVoteArgs) (*types.RequestVoteReply, error) {
	done := make(chan *types.RequestVoteReply, 1)
	r.submit(func() { done <- r.ctx.role.HandleRequestVote(r.ctx, args) })
	select {
	case reply := <-done:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsOpen reports whether the replica is currently open, safe to call from
// any goroutine (spec §4.4's Client Gateway checks this before submitting
// onto the pump, since nothing drains the pump until Open starts it).
func (r *Replica) IsOpen() bool {
	return r.opened.Load()
}

// TermProvider exposes the primary-election surface described in spec §6,
// proxying to the context's termProvider while keeping term/leader
// snapshots synchronised from the pump.
func (r *Replica) TermProvider() *termProvider {
	return r.ctx.termProv
}
