package clustermembers

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/jathurchan/raftreplica/types"
)

// freePort grounds the gossip-bind-address pattern on the retrieved pack's
// own memberlist test helper: binding a UDP socket to port 0 and reading
// back the OS-assigned port avoids colliding with other tests.
func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestCluster_StartLocal(t *testing.T) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	c, err := New(Options{NodeID: "n1", Kind: types.NodeActive, Bind: addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Leave() }()

	if c.LocalID() != "n1" {
		t.Fatalf("expected local id n1, got %q", c.LocalID())
	}
	if c.LocalKind() != types.NodeActive {
		t.Fatalf("expected local kind Active, got %v", c.LocalKind())
	}
	if kind, ok := c.Member("n1"); !ok || kind != types.NodeActive {
		t.Fatalf("expected the local node to be seeded into its own member map, got %v/%v", kind, ok)
	}
}

func TestCluster_JoinConvergesMembership(t *testing.T) {
	addr1 := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	c1, err := New(Options{NodeID: "n1", Kind: types.NodeActive, Bind: addr1})
	if err != nil {
		t.Fatalf("New n1: %v", err)
	}
	defer func() { _ = c1.Leave() }()

	addr2 := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	c2, err := New(Options{NodeID: "n2", Kind: types.NodePassive, Bind: addr2})
	if err != nil {
		t.Fatalf("New n2: %v", err)
	}
	defer func() { _ = c2.Leave() }()

	if err := c2.Join([]string{addr1}); err != nil {
		t.Fatalf("Join: %v", err)
	}

	awaitMemberCount(t, c1, 2, 5*time.Second)
	awaitMemberCount(t, c2, 2, 5*time.Second)

	if kind, ok := c1.Member("n2"); !ok || kind != types.NodePassive {
		t.Fatalf("expected n1 to learn n2's gossiped kind Passive, got %v/%v", kind, ok)
	}
}

func TestCluster_JoinWithNoSeedsIsNoOp(t *testing.T) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	c, err := New(Options{NodeID: "solo", Kind: types.NodeActive, Bind: addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Leave() }()

	if err := c.Join(nil); err != nil {
		t.Fatalf("expected Join with no seeds to succeed as a no-op, got: %v", err)
	}
}

func awaitMemberCount(t *testing.T, c *Cluster, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if len(c.Members()) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d members, got %d", want, len(c.Members()))
		}
		time.Sleep(100 * time.Millisecond)
	}
}
