package raft

import (
	"context"
	"sync"

	"github.com/jathurchan/raftreplica/types"
)

// fakeLogStore is an in-memory LogStore for unit tests exercising the
// replica core without a real storage adapter.
type fakeLogStore struct {
	mu      sync.Mutex
	entries []types.LogEntry
	openErr error
}

func (f *fakeLogStore) Open() error  { return f.openErr }
func (f *fakeLogStore) Close() error { return nil }

func (f *fakeLogStore) Append(term types.Term, key, entry []byte, kind types.EntryKind) (types.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := types.Index(len(f.entries) + 1)
	f.entries = append(f.entries, types.LogEntry{Index: idx, Term: term, Key: key, Entry: entry, Kind: kind})
	return idx, nil
}

func (f *fakeLogStore) TruncateSuffix(from types.Index) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if from == 0 || int(from) > len(f.entries)+1 {
		return nil
	}
	f.entries = f.entries[:from-1]
	return nil
}

func (f *fakeLogStore) Entries(from, to types.Index) ([]types.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.LogEntry
	for _, e := range f.entries {
		if e.Index >= from && e.Index <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogStore) TermAt(index types.Index) (types.Term, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index == 0 || int(index) > len(f.entries) {
		return 0, nil
	}
	return f.entries[index-1].Term, nil
}

func (f *fakeLogStore) FirstIndex() types.Index {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return 0
	}
	return f.entries[0].Index
}

func (f *fakeLogStore) LastIndex() types.Index {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return 0
	}
	return f.entries[len(f.entries)-1].Index
}

// fakeTransport is a no-op Transport stub satisfying the interface for
// dependency-validation tests; behavioural tests install function fields.
type fakeTransport struct {
	sendAppendEntriesFunc func(context.Context, types.NodeID, *types.AppendEntriesArgs) (*types.AppendEntriesReply, error)
	sendRequestVoteFunc   func(context.Context, types.NodeID, *types.RequestVoteArgs) (*types.RequestVoteReply, error)
	forwardReadFunc       func(context.Context, types.NodeID, *types.ReadRequest) (*types.ClientResult, error)
	forwardWriteFunc      func(context.Context, types.NodeID, *types.WriteRequest) (*types.ClientResult, error)
	forwardDeleteFunc     func(context.Context, types.NodeID, *types.DeleteRequest) (*types.ClientResult, error)
}

func (f *fakeTransport) SendAppendEntries(ctx context.Context, peer types.NodeID, args *types.AppendEntriesArgs) (*types.AppendEntriesReply, error) {
	if f.sendAppendEntriesFunc != nil {
		return f.sendAppendEntriesFunc(ctx, peer, args)
	}
	return &types.AppendEntriesReply{Term: args.Term, Success: true}, nil
}

func (f *fakeTransport) SendRequestVote(ctx context.Context, peer types.NodeID, args *types.RequestVoteArgs) (*types.RequestVoteReply, error) {
	if f.sendRequestVoteFunc != nil {
		return f.sendRequestVoteFunc(ctx, peer, args)
	}
	return &types.RequestVoteReply{Term: args.Term, VoteGranted: true}, nil
}

func (f *fakeTransport) ForwardRead(ctx context.Context, leader types.NodeID, req *types.ReadRequest) (*types.ClientResult, error) {
	if f.forwardReadFunc != nil {
		return f.forwardReadFunc(ctx, leader, req)
	}
	return &types.ClientResult{}, nil
}

func (f *fakeTransport) ForwardWrite(ctx context.Context, leader types.NodeID, req *types.WriteRequest) (*types.ClientResult, error) {
	if f.forwardWriteFunc != nil {
		return f.forwardWriteFunc(ctx, leader, req)
	}
	return &types.ClientResult{}, nil
}

func (f *fakeTransport) ForwardDelete(ctx context.Context, leader types.NodeID, req *types.DeleteRequest) (*types.ClientResult, error) {
	if f.forwardDeleteFunc != nil {
		return f.forwardDeleteFunc(ctx, leader, req)
	}
	return &types.ClientResult{}, nil
}

// fakeCluster is a fixed-membership Cluster stub for tests.
type fakeCluster struct {
	localID   types.NodeID
	localKind types.NodeKind
	members   []types.NodeID
}

func newFakeCluster(local types.NodeID, members ...types.NodeID) *fakeCluster {
	if len(members) == 0 {
		members = []types.NodeID{local}
	}
	return &fakeCluster{localID: local, members: members}
}

func (f *fakeCluster) LocalID() types.NodeID     { return f.localID }
func (f *fakeCluster) LocalKind() types.NodeKind { return f.localKind }
func (f *fakeCluster) Members() []types.NodeID   { return f.members }

func (f *fakeCluster) Member(id types.NodeID) (types.NodeKind, bool) {
	for _, m := range f.members {
		if m == id {
			return types.NodeActive, true
		}
	}
	return 0, false
}
