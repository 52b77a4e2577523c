package raft

import (
	"context"
	"sync"

	"github.com/jathurchan/raftreplica/types"
)

// TermListenerHandle identifies a registered TermProvider listener so it
// can be removed in O(1) without relying on closure identity, per Design
// Note §9's "listener lifecycle" rewrite.
type TermListenerHandle uint64

// TermListener is invoked on every term change with the current
// TermDescriptor mapping.
type TermListener func(types.TermDescriptor)

// termProvider exposes the TermProvider surface described in spec §6,
// derived from the Atomix LogPartitionTermProvider.toTerm mapping
// (original_source/): term is the epoch, leader is the believed leader,
// and followers is the candidate list truncated to the replication
// factor with the leader excluded, preserving order.
type termProvider struct {
	mu                sync.Mutex
	replicationFactor int
	listeners         map[TermListenerHandle]TermListener
	nextHandle        TermListenerHandle

	// getTerm answers GetTerm by hopping onto the owning Replica's context
	// thread; wired by Replica.New since the live term/leader/member view
	// lives on replicaContext, not here. Nil until wired.
	getTerm func(ctx context.Context) (types.TermDescriptor, error)
}

func newTermProvider(replicationFactor int) *termProvider {
	return &termProvider{
		replicationFactor: replicationFactor,
		listeners:         make(map[TermListenerHandle]TermListener),
	}
}

// toTerm maps the current term/leader/member-list into the advertised
// TermDescriptor, mirroring LogPartitionTermProvider.toTerm: the follower
// list is replication-factor-bounded, excludes the leader, and preserves
// the order candidates were observed in.
func (tp *termProvider) toTerm(term types.Term, leader types.NodeID, members []types.NodeID) types.TermDescriptor {
	followers := make([]types.NodeID, 0, len(members))
	for _, m := range members {
		if m == leader {
			continue
		}
		followers = append(followers, m)
	}
	tp.mu.Lock()
	rf := tp.replicationFactor
	tp.mu.Unlock()
	if rf > 0 && len(followers) > rf {
		followers = followers[:rf]
	}
	return types.TermDescriptor{Term: term, Leader: leader, Followers: followers}
}

// GetTerm implements the TermProvider's primary operation (spec.md §6
// `get_term() -> Future<Term{...}>`): it returns the current
// TermDescriptor, hopping onto the replica's context thread to read a
// consistent term/leader/member snapshot. ctx is honored only insofar as
// the caller may cancel before the context thread replies; the replica
// itself never blocks indefinitely.
func (tp *termProvider) GetTerm(ctx context.Context) (types.TermDescriptor, error) {
	if tp.getTerm == nil {
		return types.TermDescriptor{}, ErrNotOpen
	}
	return tp.getTerm(ctx)
}

// notify invokes every registered listener with desc, called whenever the
// context thread observes a term or leader change (spec.md §6 "listeners
// invoked on each term change").
func (tp *termProvider) notify(desc types.TermDescriptor) {
	tp.mu.Lock()
	listeners := make([]TermListener, 0, len(tp.listeners))
	for _, l := range tp.listeners {
		listeners = append(listeners, l)
	}
	tp.mu.Unlock()
	for _, l := range listeners {
		l(desc)
	}
}

// AddListener registers l and returns a handle usable with RemoveListener.
func (tp *termProvider) AddListener(l TermListener) TermListenerHandle {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.nextHandle++
	h := tp.nextHandle
	tp.listeners[h] = l
	return h
}

// RemoveListener unregisters the listener identified by h. A handle not
// currently registered is silently ignored.
func (tp *termProvider) RemoveListener(h TermListenerHandle) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	delete(tp.listeners, h)
}

// Join enters the election on behalf of the local member. The replica
// core is always a participant once opened as Active, so Join is a no-op
// success for an already-open replica.
func (tp *termProvider) Join(ctx context.Context) error {
	return nil
}

// Leave is an intentional no-op: the source's leave() on the term
// provider never withdraws a member from the election (spec.md §9 Open
// Question, preserved rather than guessed at).
func (tp *termProvider) Leave(ctx context.Context) error {
	return nil
}
