package raft

import (
	"context"

	"github.com/jathurchan/raftreplica/types"
)

// Gateway exposes the client-facing read/write/delete surface described
// in spec §4.4. It never touches replicaContext fields directly: every
// request is submitted onto the Replica's pump and resolved there by the
// current role.
type Gateway struct {
	replica *Replica
}

// NewGateway wraps replica with the Client Gateway surface.
func NewGateway(replica *Replica) *Gateway {
	return &Gateway{replica: replica}
}

// Read serves req according to its requested consistency, forwarding to
// the leader if the local role cannot serve it directly.
func (g *Gateway) Read(ctx context.Context, req *types.ReadRequest) ([]byte, error) {
	return g.dispatch(ctx, "read", func(respond ClientResultFunc) {
		g.replica.ctx.role.HandleRead(g.replica.ctx, req, respond)
	})
}

// Write replicates req and returns once it has committed and applied.
func (g *Gateway) Write(ctx context.Context, req *types.WriteRequest) ([]byte, error) {
	return g.dispatch(ctx, "write", func(respond ClientResultFunc) {
		g.replica.ctx.role.HandleWrite(g.replica.ctx, req, respond)
	})
}

// Delete replicates req and returns once it has committed and applied.
func (g *Gateway) Delete(ctx context.Context, req *types.DeleteRequest) ([]byte, error) {
	return g.dispatch(ctx, "delete", func(respond ClientResultFunc) {
		g.replica.ctx.role.HandleDelete(g.replica.ctx, req, respond)
	})
}

// dispatch implements the gateway's shared contract: fail synchronously
// with ErrNotOpen if the replica is not open; otherwise submit to the
// pump and resolve via the supplied handler. The request is always
// considered released once dispatch returns, regardless of outcome.
// Every outcome is recorded via ObserveClientRequest, labeled by op.
func (g *Gateway) dispatch(ctx context.Context, op string, handle func(ClientResultFunc)) ([]byte, error) {
	metrics := g.replica.ctx.metrics()
	if !g.replica.IsOpen() {
		metrics.ObserveClientRequest(op, false, 0)
		return nil, ErrNotOpen
	}
	start := g.replica.ctx.clock.Now()
	done := make(chan types.ClientResult, 1)
	g.replica.submit(func() {
		handle(func(result types.ClientResult) { done <- result })
	})
	select {
	case result := <-done:
		metrics.ObserveClientRequest(op, result.Err == nil, g.replica.ctx.clock.Since(start))
		return result.Result, result.Err
	case <-ctx.Done():
		metrics.ObserveClientRequest(op, false, g.replica.ctx.clock.Since(start))
		return nil, ctx.Err()
	}
}
