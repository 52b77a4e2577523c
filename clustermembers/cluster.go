// Package clustermembers implements raft.Cluster over hashicorp/memberlist
// gossip membership: each node's participation kind (active/passive/
// remote) rides in its gossiped node metadata, so membership changes
// discovered by the SWIM protocol flow straight into the replica core's
// view of the cluster.
package clustermembers

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/memberlist"

	"github.com/jathurchan/raftreplica/types"
)

// Options configures the memberlist-backed Cluster.
type Options struct {
	NodeID    types.NodeID
	Kind      types.NodeKind
	Bind      string // host:port
	Advertise string // host:port, optional
}

type nodeMeta struct {
	Kind types.NodeKind `json:"kind"`
}

// Cluster implements raft.Cluster by gossiping node-kind metadata over
// memberlist and maintaining a local snapshot of the member set.
type Cluster struct {
	opts Options
	ml   *memberlist.Memberlist

	mu      sync.RWMutex
	members map[types.NodeID]types.NodeKind
}

// New creates and starts a memberlist instance for opts. Join must be
// called afterward to contact seed peers.
func New(opts Options) (*Cluster, error) {
	if opts.NodeID == "" {
		return nil, fmt.Errorf("clustermembers: empty node id")
	}
	host, portStr, err := net.SplitHostPort(opts.Bind)
	if err != nil {
		return nil, fmt.Errorf("clustermembers: invalid bind address %q: %w", opts.Bind, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, fmt.Errorf("clustermembers: invalid bind port %q: %w", portStr, err)
	}

	c := &Cluster{opts: opts, members: make(map[types.NodeID]types.NodeKind)}
	c.members[opts.NodeID] = opts.Kind

	meta, err := json.Marshal(nodeMeta{Kind: opts.Kind})
	if err != nil {
		return nil, err
	}

	cfg := memberlist.DefaultLANConfig()
	cfg.Name = string(opts.NodeID)
	cfg.BindAddr = host
	cfg.BindPort = port
	if opts.Advertise != "" {
		ahost, aportStr, err := net.SplitHostPort(opts.Advertise)
		if err != nil {
			return nil, fmt.Errorf("clustermembers: invalid advertise address %q: %w", opts.Advertise, err)
		}
		var aport int
		if _, err := fmt.Sscanf(aportStr, "%d", &aport); err != nil {
			return nil, fmt.Errorf("clustermembers: invalid advertise port %q: %w", aportStr, err)
		}
		cfg.AdvertiseAddr = ahost
		cfg.AdvertisePort = aport
	}
	cfg.Delegate = &delegate{meta: meta}
	cfg.Events = &eventDelegate{cluster: c}

	ml, err := memberlist.Create(cfg)
	if err != nil {
		return nil, err
	}
	c.ml = ml
	return c, nil
}

// Join contacts the given seed addresses to discover the rest of the
// cluster.
func (c *Cluster) Join(seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}
	_, err := c.ml.Join(seeds)
	return err
}

// Leave gracefully announces departure and shuts the memberlist instance
// down.
func (c *Cluster) Leave() error {
	_ = c.ml.Leave(0)
	return c.ml.Shutdown()
}

// LocalID implements raft.Cluster.
func (c *Cluster) LocalID() types.NodeID { return c.opts.NodeID }

// LocalKind implements raft.Cluster.
func (c *Cluster) LocalKind() types.NodeKind { return c.opts.Kind }

// Members implements raft.Cluster.
func (c *Cluster) Members() []types.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]types.NodeID, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	return ids
}

// Member implements raft.Cluster.
func (c *Cluster) Member(id types.NodeID) (types.NodeKind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kind, ok := c.members[id]
	return kind, ok
}

func (c *Cluster) upsert(id types.NodeID, meta []byte) {
	kind := types.NodeActive
	var decoded nodeMeta
	if len(meta) > 0 && json.Unmarshal(meta, &decoded) == nil {
		kind = decoded.Kind
	}
	c.mu.Lock()
	c.members[id] = kind
	c.mu.Unlock()
}

func (c *Cluster) remove(id types.NodeID) {
	c.mu.Lock()
	delete(c.members, id)
	c.mu.Unlock()
}

// delegate propagates this node's kind metadata over gossip.
type delegate struct{ meta []byte }

func (d *delegate) NodeMeta(limit int) []byte {
	if len(d.meta) <= limit {
		return d.meta
	}
	return d.meta[:limit]
}
func (d *delegate) NotifyMsg([]byte)                       {}
func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *delegate) LocalState(join bool) []byte            { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool) {}

// eventDelegate keeps Cluster's member snapshot in sync with memberlist's
// SWIM view.
type eventDelegate struct{ cluster *Cluster }

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	e.cluster.upsert(types.NodeID(n.Name), n.Meta)
}
func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	e.cluster.remove(types.NodeID(n.Name))
}
func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.cluster.upsert(types.NodeID(n.Name), n.Meta)
}
