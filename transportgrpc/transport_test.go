package transportgrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jathurchan/raftreplica/logstoremem"
	"github.com/jathurchan/raftreplica/raft"
	"github.com/jathurchan/raftreplica/types"
)

// noPeersTransport satisfies raft.Transport for a single-node replica that
// never actually dials a peer.
type noPeersTransport struct{}

func (noPeersTransport) SendAppendEntries(context.Context, types.NodeID, *types.AppendEntriesArgs) (*types.AppendEntriesReply, error) {
	return nil, context.DeadlineExceeded
}
func (noPeersTransport) SendRequestVote(context.Context, types.NodeID, *types.RequestVoteArgs) (*types.RequestVoteReply, error) {
	return nil, context.DeadlineExceeded
}
func (noPeersTransport) ForwardRead(context.Context, types.NodeID, *types.ReadRequest) (*types.ClientResult, error) {
	return nil, context.DeadlineExceeded
}
func (noPeersTransport) ForwardWrite(context.Context, types.NodeID, *types.WriteRequest) (*types.ClientResult, error) {
	return nil, context.DeadlineExceeded
}
func (noPeersTransport) ForwardDelete(context.Context, types.NodeID, *types.DeleteRequest) (*types.ClientResult, error) {
	return nil, context.DeadlineExceeded
}

type singleMemberCluster struct{ id types.NodeID }

func (c singleMemberCluster) LocalID() types.NodeID     { return c.id }
func (c singleMemberCluster) LocalKind() types.NodeKind { return types.NodeActive }
func (c singleMemberCluster) Members() []types.NodeID   { return []types.NodeID{c.id} }
func (c singleMemberCluster) Member(id types.NodeID) (types.NodeKind, bool) {
	if id == c.id {
		return types.NodeActive, true
	}
	return 0, false
}

func echoCommit(key, entry []byte) ([]byte, error) { return entry, nil }

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freeAddr: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}

func newServedReplica(t *testing.T) (*raft.Replica, *Server) {
	t.Helper()
	opts := raft.DefaultOptions()
	opts.ElectionTimeout = 15 * time.Millisecond
	opts.HeartbeatInterval = 5 * time.Millisecond

	r, err := raft.New("n1", opts, raft.Dependencies{
		LogStore:      logstoremem.New(),
		Transport:     noPeersTransport{},
		Cluster:       singleMemberCluster{id: "n1"},
		CommitHandler: echoCommit,
	})
	if err != nil {
		t.Fatalf("raft.New: %v", err)
	}
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	addr := freeAddr(t)
	srv := NewServer(addr, r)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return r, srv
}

func awaitLeader(t *testing.T, r *raft.Replica, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		st, err := r.Status(context.Background())
		if err == nil && st.Role == types.RoleLeader {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting to become leader")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTransport_RequestVoteRoundTripsOverGRPC(t *testing.T) {
	r, srv := newServedReplica(t)
	awaitLeader(t, r, time.Second)

	client := NewClient(func(id types.NodeID) (string, bool) {
		if id == "n1" {
			return srv.Addr(), true
		}
		return "", false
	})
	defer func() { _ = client.Close() }()

	reply, err := client.SendRequestVote(context.Background(), "n1", &types.RequestVoteArgs{
		Term:        1,
		CandidateID: "challenger",
	})
	if err != nil {
		t.Fatalf("SendRequestVote: %v", err)
	}
	if reply.VoteGranted {
		t.Fatalf("expected the established leader to reject a stale-term vote request")
	}
}

func TestTransport_ForwardWriteRoundTripsOverGRPC(t *testing.T) {
	r, srv := newServedReplica(t)
	awaitLeader(t, r, time.Second)

	client := NewClient(func(id types.NodeID) (string, bool) {
		if id == "n1" {
			return srv.Addr(), true
		}
		return "", false
	})
	defer func() { _ = client.Close() }()

	result, err := client.ForwardWrite(context.Background(), "n1", &types.WriteRequest{
		Key:   []byte("k"),
		Entry: []byte("v"),
	})
	if err != nil {
		t.Fatalf("ForwardWrite: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected the write to succeed on the leader, got %v", result.Err)
	}
	if string(result.Result) != "v" {
		t.Fatalf("expected echoed payload %q, got %q", "v", result.Result)
	}
}

func TestTransport_AppendEntriesRejectsStaleTermOverGRPC(t *testing.T) {
	r, srv := newServedReplica(t)
	awaitLeader(t, r, time.Second)

	client := NewClient(func(id types.NodeID) (string, bool) {
		if id == "n1" {
			return srv.Addr(), true
		}
		return "", false
	})
	defer func() { _ = client.Close() }()

	reply, err := client.SendAppendEntries(context.Background(), "n1", &types.AppendEntriesArgs{
		Term:     0,
		LeaderID: "ghost",
	})
	if err != nil {
		t.Fatalf("SendAppendEntries: %v", err)
	}
	if reply.Success {
		t.Fatalf("expected a stale-term AppendEntries to be rejected")
	}
}
