package transportgrpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/jathurchan/raftreplica/raft"
	"github.com/jathurchan/raftreplica/types"
)

// Server exposes a *raft.Replica's RPC and client-forwarding surface over
// gRPC, using the JSON codec so no .proto stubs are required.
type Server struct {
	bind    string
	replica *raft.Replica
	lis     net.Listener
	srv     *grpc.Server
}

// NewServer binds a Server for replica at addr. Start must be called to
// begin serving.
func NewServer(addr string, replica *raft.Replica) *Server {
	return &Server{bind: addr, replica: replica}
}

// replicaServer is the handler interface registered against the hand
// written service descriptor below.
type replicaServer interface {
	AppendEntries(ctx context.Context, in *types.AppendEntriesArgs) (*types.AppendEntriesReply, error)
	RequestVote(ctx context.Context, in *types.RequestVoteArgs) (*types.RequestVoteReply, error)
	ForwardRead(ctx context.Context, in *types.ReadRequest) (*types.ClientResult, error)
	ForwardWrite(ctx context.Context, in *types.WriteRequest) (*types.ClientResult, error)
	ForwardDelete(ctx context.Context, in *types.DeleteRequest) (*types.ClientResult, error)
}

type replicaImpl struct {
	replica *raft.Replica
}

func (s *replicaImpl) AppendEntries(ctx context.Context, in *types.AppendEntriesArgs) (*types.AppendEntriesReply, error) {
	return s.replica.HandleAppendEntries(ctx, in)
}

func (s *replicaImpl) RequestVote(ctx context.Context, in *types.RequestVoteArgs) (*types.RequestVoteReply, error) {
	return s.replica.HandleRequestVote(ctx, in)
}

func (s *replicaImpl) ForwardRead(ctx context.Context, in *types.ReadRequest) (*types.ClientResult, error) {
	return forwardToGateway(ctx, s.replica, in, nil, nil)
}

func (s *replicaImpl) ForwardWrite(ctx context.Context, in *types.WriteRequest) (*types.ClientResult, error) {
	return forwardToGateway(ctx, s.replica, nil, in, nil)
}

func (s *replicaImpl) ForwardDelete(ctx context.Context, in *types.DeleteRequest) (*types.ClientResult, error) {
	return forwardToGateway(ctx, s.replica, nil, nil, in)
}

// forwardToGateway routes a forwarded client request through a Gateway
// wrapping replica, since Transport forwards land on the leader's Gateway
// rather than directly on its role.
func forwardToGateway(
	ctx context.Context,
	replica *raft.Replica,
	read *types.ReadRequest,
	write *types.WriteRequest,
	del *types.DeleteRequest,
) (*types.ClientResult, error) {
	gw := raft.NewGateway(replica)
	var (
		result []byte
		err    error
	)
	switch {
	case read != nil:
		result, err = gw.Read(ctx, read)
	case write != nil:
		result, err = gw.Write(ctx, write)
	case del != nil:
		result, err = gw.Delete(ctx, del)
	}
	return &types.ClientResult{Result: result, Err: err}, nil
}

var replicaServiceDesc = grpc.ServiceDesc{
	ServiceName: "raftreplica.v1.Replica",
	HandlerType: (*replicaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "ForwardRead", Handler: forwardReadHandler},
		{MethodName: "ForwardWrite", Handler: forwardWriteHandler},
		{MethodName: "ForwardDelete", Handler: forwardDeleteHandler},
	},
}

func appendEntriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.AppendEntriesArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftreplica.v1.Replica/AppendEntries"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaServer).AppendEntries(ctx, req.(*types.AppendEntriesArgs))
	}
	return interceptor(ctx, in, info, handler)
}

func requestVoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.RequestVoteArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftreplica.v1.Replica/RequestVote"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaServer).RequestVote(ctx, req.(*types.RequestVoteArgs))
	}
	return interceptor(ctx, in, info, handler)
}

func forwardReadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaServer).ForwardRead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftreplica.v1.Replica/ForwardRead"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaServer).ForwardRead(ctx, req.(*types.ReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func forwardWriteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.WriteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaServer).ForwardWrite(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftreplica.v1.Replica/ForwardWrite"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaServer).ForwardWrite(ctx, req.(*types.WriteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func forwardDeleteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaServer).ForwardDelete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftreplica.v1.Replica/ForwardDelete"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaServer).ForwardDelete(ctx, req.(*types.DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Start binds the listener and begins serving in a background goroutine.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	s.lis = lis
	s.srv = grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.srv.RegisterService(&replicaServiceDesc, &replicaImpl{replica: s.replica})
	go func() { _ = s.srv.Serve(lis) }()
	return nil
}

// Stop gracefully stops the server, falling back to a hard stop once ctx
// is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	done := make(chan struct{})
	go func() { s.srv.GracefulStop(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.bind }
