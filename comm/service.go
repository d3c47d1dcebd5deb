package comm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Interfaces

// ReplicationServer is the server API of the
// orset.Replication gRPC service.
type ReplicationServer interface {

	// Push merges an encoded Message into the replica.
	Push(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)

	// Pull returns the encoded state of the replica.
	Pull(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)

	// Add inserts an element under a fresh tag
	// and returns that tag.
	Add(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)

	// Remove tombstones all observed tags of an element.
	Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)

	// Contains reports membership of an element.
	Contains(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)

	// List renders the current members.
	List(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// Functions

// RegisterReplicationServer attaches srv to s.
func RegisterReplicationServer(s *grpc.Server, srv ReplicationServer) {
	s.RegisterService(&replicationServiceDesc, srv)
}

// unaryHandler builds the method handler for one
// unary call of the replication service.
func unaryHandler[Req any, Resp any](method string, call func(ReplicationServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(ReplicationServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ReplicationServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

const serviceName = "orset.Replication"

var replicationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReplicationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Push",
			Handler:    unaryHandler("Push", ReplicationServer.Push),
		},
		{
			MethodName: "Pull",
			Handler:    unaryHandler("Pull", ReplicationServer.Pull),
		},
		{
			MethodName: "Add",
			Handler:    unaryHandler("Add", ReplicationServer.Add),
		},
		{
			MethodName: "Remove",
			Handler:    unaryHandler("Remove", ReplicationServer.Remove),
		},
		{
			MethodName: "Contains",
			Handler:    unaryHandler("Contains", ReplicationServer.Contains),
		},
		{
			MethodName: "List",
			Handler:    unaryHandler("List", ReplicationServer.List),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "comm/service.go",
}
