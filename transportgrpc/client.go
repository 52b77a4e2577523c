package transportgrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jathurchan/raftreplica/types"
)

// Resolver maps a peer's NodeID to its dial address.
type Resolver func(types.NodeID) (addr string, ok bool)

// Client implements raft.Transport over gRPC with the JSON codec,
// dialing peers lazily and caching connections by address.
type Client struct {
	resolve Resolver

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient creates a Client that resolves peer addresses via resolve.
func NewClient(resolve Resolver) *Client {
	return &Client{resolve: resolve, conns: make(map[string]*grpc.ClientConn)}
}

func (c *Client) conn(ctx context.Context, peer types.NodeID) (*grpc.ClientConn, error) {
	addr, ok := c.resolve(peer)
	if !ok {
		return nil, fmt.Errorf("transportgrpc: unknown peer %q", peer)
	}
	c.mu.Lock()
	if cc, ok := c.conns[addr]; ok {
		c.mu.Unlock()
		return cc, nil
	}
	c.mu.Unlock()

	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype(codecName)),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
	)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.conns[addr]; ok {
		c.mu.Unlock()
		_ = cc.Close()
		return existing, nil
	}
	c.conns[addr] = cc
	c.mu.Unlock()
	return cc, nil
}

// SendAppendEntries implements raft.Transport.
func (c *Client) SendAppendEntries(ctx context.Context, peer types.NodeID, args *types.AppendEntriesArgs) (*types.AppendEntriesReply, error) {
	cc, err := c.conn(ctx, peer)
	if err != nil {
		return nil, err
	}
	out := new(types.AppendEntriesReply)
	if err := cc.Invoke(ctx, "/raftreplica.v1.Replica/AppendEntries", args, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendRequestVote implements raft.Transport.
func (c *Client) SendRequestVote(ctx context.Context, peer types.NodeID, args *types.RequestVoteArgs) (*types.RequestVoteReply, error) {
	cc, err := c.conn(ctx, peer)
	if err != nil {
		return nil, err
	}
	out := new(types.RequestVoteReply)
	if err := cc.Invoke(ctx, "/raftreplica.v1.Replica/RequestVote", args, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForwardRead implements raft.Transport.
func (c *Client) ForwardRead(ctx context.Context, leader types.NodeID, req *types.ReadRequest) (*types.ClientResult, error) {
	cc, err := c.conn(ctx, leader)
	if err != nil {
		return nil, err
	}
	out := new(types.ClientResult)
	if err := cc.Invoke(ctx, "/raftreplica.v1.Replica/ForwardRead", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForwardWrite implements raft.Transport.
func (c *Client) ForwardWrite(ctx context.Context, leader types.NodeID, req *types.WriteRequest) (*types.ClientResult, error) {
	cc, err := c.conn(ctx, leader)
	if err != nil {
		return nil, err
	}
	out := new(types.ClientResult)
	if err := cc.Invoke(ctx, "/raftreplica.v1.Replica/ForwardWrite", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForwardDelete implements raft.Transport.
func (c *Client) ForwardDelete(ctx context.Context, leader types.NodeID, req *types.DeleteRequest) (*types.ClientResult, error) {
	cc, err := c.conn(ctx, leader)
	if err != nil {
		return nil, err
	}
	out := new(types.ClientResult)
	if err := cc.Invoke(ctx, "/raftreplica.v1.Replica/ForwardDelete", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, cc := range c.conns {
		_ = cc.Close()
		delete(c.conns, addr)
	}
	return nil
}
