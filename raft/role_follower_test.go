package raft

import (
	"testing"

	"github.com/jathurchan/raftreplica/types"
)

// newFollowerTestContext builds a replicaContext wired directly to a
// followerRole, bypassing the task pump: HandleAppendEntries/HandleRequestVote
// never call checkThread, and resetTimer safely no-ops when Open was never
// called (its reset channel is nil, so the select's default branch always
// fires), so these handlers can be exercised as plain functions.
func newFollowerTestContext(t *testing.T, id types.NodeID, members ...types.NodeID) (*replicaContext, *followerRole) {
	t.Helper()
	store := &fakeLogStore{}
	ctx := newReplicaContext(id, fastOptions(), Dependencies{
		LogStore:      store,
		Transport:     &fakeTransport{},
		Cluster:       newFakeCluster(id, members...),
		CommitHandler: echoHandler,
	})
	ctx.submit = func(fn func()) { fn() }
	role := &followerRole{}
	ctx.role = role
	return ctx, role
}

func TestFollower_HandleAppendEntries_RejectsStaleTerm(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	ctx.setTerm(5)
	reply := role.HandleAppendEntries(ctx, &types.AppendEntriesArgs{Term: 3, LeaderID: "n2"})
	if reply.Success || reply.Term != 5 {
		t.Fatalf("expected rejection reporting term 5, got %+v", reply)
	}
}

func TestFollower_HandleAppendEntries_AcceptsAndLearnsLeader(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	reply := role.HandleAppendEntries(ctx, &types.AppendEntriesArgs{Term: 1, LeaderID: "n2"})
	if !reply.Success {
		t.Fatalf("expected success, got %+v", reply)
	}
	if ctx.leader != "n2" {
		t.Fatalf("expected leader to be recorded as n2, got %q", ctx.leader)
	}
	if ctx.term != 1 {
		t.Fatalf("expected term to advance to 1, got %d", ctx.term)
	}
}

func TestFollower_HandleAppendEntries_ConflictOnLogMismatch(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	// Local log: one entry at term 1, index 1.
	if _, err := ctx.log.append(1, nil, []byte("a"), types.EntryCommand); err != nil {
		t.Fatalf("append: %v", err)
	}

	reply := role.HandleAppendEntries(ctx, &types.AppendEntriesArgs{
		Term: 2, LeaderID: "n2", PrevLogIndex: 1, PrevLogTerm: 9,
	})
	if reply.Success {
		t.Fatalf("expected a log-matching failure on mismatched PrevLogTerm")
	}
	if reply.ConflictTerm != 1 {
		t.Fatalf("expected ConflictTerm to report the local term at PrevLogIndex, got %d", reply.ConflictTerm)
	}
	if reply.ConflictIndex != 1 {
		t.Fatalf("expected ConflictIndex to point at the first index of the conflicting term, got %d", reply.ConflictIndex)
	}
}

func TestFollower_HandleAppendEntries_SplicesAndAdvancesCommit(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	applied := [][]byte{}
	ctx.deps.CommitHandler = func(key, entry []byte) ([]byte, error) {
		applied = append(applied, entry)
		return entry, nil
	}

	reply := role.HandleAppendEntries(ctx, &types.AppendEntriesArgs{
		Term: 1, LeaderID: "n2",
		Entries: []types.LogEntry{
			{Index: 1, Term: 1, Key: []byte("k1"), Entry: []byte("v1"), Kind: types.EntryCommand},
			{Index: 2, Term: 1, Key: []byte("k2"), Entry: []byte("v2"), Kind: types.EntryCommand},
		},
		LeaderCommit: 2,
	})
	if !reply.Success {
		t.Fatalf("expected success, got %+v", reply)
	}
	if ctx.log.lastIndex() != 2 {
		t.Fatalf("expected both entries to be appended, last index = %d", ctx.log.lastIndex())
	}
	if ctx.commitIndex != 2 {
		t.Fatalf("expected commit index to advance to the leader's commit, got %d", ctx.commitIndex)
	}
	if len(applied) != 2 {
		t.Fatalf("expected both entries to be applied via the commit handler, got %d", len(applied))
	}
}

func TestFollower_HandleAppendEntries_TruncatesConflictingSuffix(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	if _, err := ctx.log.append(1, nil, []byte("stale"), types.EntryCommand); err != nil {
		t.Fatalf("append: %v", err)
	}

	reply := role.HandleAppendEntries(ctx, &types.AppendEntriesArgs{
		Term: 2, LeaderID: "n2",
		Entries: []types.LogEntry{
			{Index: 1, Term: 2, Key: nil, Entry: []byte("fresh"), Kind: types.EntryCommand},
		},
	})
	if !reply.Success {
		t.Fatalf("expected success, got %+v", reply)
	}
	entries, err := ctx.log.entries(1, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected exactly one entry at index 1, got %v (err=%v)", entries, err)
	}
	if string(entries[0].Entry) != "fresh" {
		t.Fatalf("expected the conflicting stale entry to be replaced, got %q", entries[0].Entry)
	}
}

func TestFollower_HandleRequestVote_GrantsWhenUnvoted(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	reply := role.HandleRequestVote(ctx, &types.RequestVoteArgs{Term: 1, CandidateID: "n2"})
	if !reply.VoteGranted {
		t.Fatalf("expected vote to be granted")
	}
	if ctx.votedFor != "n2" {
		t.Fatalf("expected votedFor to record n2, got %q", ctx.votedFor)
	}
}

func TestFollower_HandleRequestVote_RejectsSecondCandidateSameTerm(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2", "n3")
	first := role.HandleRequestVote(ctx, &types.RequestVoteArgs{Term: 1, CandidateID: "n2"})
	if !first.VoteGranted {
		t.Fatalf("expected first vote to be granted")
	}
	second := role.HandleRequestVote(ctx, &types.RequestVoteArgs{Term: 1, CandidateID: "n3"})
	if second.VoteGranted {
		t.Fatalf("expected a second candidate in the same term to be rejected")
	}
}

func TestFollower_HandleRequestVote_RejectsStaleLog(t *testing.T) {
	ctx, role := newFollowerTestContext(t, "n1", "n1", "n2")
	if _, err := ctx.log.append(3, nil, []byte("a"), types.EntryCommand); err != nil {
		t.Fatalf("append: %v", err)
	}
	ctx.setTerm(3)

	reply := role.HandleRequestVote(ctx, &types.RequestVoteArgs{
		Term: 3, CandidateID: "n2", LastLogIndex: 0, LastLogTerm: 0,
	})
	if reply.VoteGranted {
		t.Fatalf("expected vote to be rejected for a candidate with a less up to date log")
	}
}

func TestConflictIndex_SkipsEntireMismatchedTerm(t *testing.T) {
	ctx, _ := newFollowerTestContext(t, "n1", "n1", "n2")
	for _, term := range []types.Term{1, 1, 1, 2, 2} {
		if _, err := ctx.log.append(term, nil, nil, types.EntryCommand); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Index 5 is the second entry of term 2; the conflicting term started at
	// index 4, so conflictIndex should point there, not at index 5.
	if got := conflictIndex(ctx, 5); got != 4 {
		t.Fatalf("expected conflictIndex to return 4, got %d", got)
	}
}
