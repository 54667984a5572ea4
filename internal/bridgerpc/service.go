// Package bridgerpc defines the wire contract between the client shell and
// a session daemon: one gRPC service whose methods all exchange open
// keyed records (structpb.Struct), plus a server-streaming Listen method
// for event delivery. The record shape per method is fixed by the codec
// in this package, so both ends stay in sync without generated stubs.
package bridgerpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "waddle.bridge.v1.Bridge"

// Unary method names. Each is invoked as /waddle.bridge.v1.Bridge/<name>.
const (
	MethodSendMessage   = "SendMessage"
	MethodGetRoster     = "GetRoster"
	MethodSetPresence   = "SetPresence"
	MethodJoinRoom      = "JoinRoom"
	MethodLeaveRoom     = "LeaveRoom"
	MethodGetHistory    = "GetHistory"
	MethodManagePlugins = "ManagePlugins"
	MethodGetConfig     = "GetConfig"
	MethodGetStatus     = "GetStatus"
)

// MethodListen is the server-streaming event subscription method.
const MethodListen = "Listen"

// UnaryMethods lists every unary method in the service, in registration
// order.
var UnaryMethods = []string{
	MethodSendMessage,
	MethodGetRoster,
	MethodSetPresence,
	MethodJoinRoom,
	MethodLeaveRoom,
	MethodGetHistory,
	MethodManagePlugins,
	MethodGetConfig,
	MethodGetStatus,
}

// Handler is what a daemon implements to serve the bridge service.
// Invoke dispatches one unary method; Listen streams envelopes for a
// channel subscription until the stream's context ends.
type Handler interface {
	Invoke(ctx context.Context, method string, args *structpb.Struct) (*structpb.Struct, error)
	Listen(req *structpb.Struct, stream grpc.ServerStream) error
}

// FullMethod returns the wire path for a method name.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryDesc(method string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(Handler)
			if interceptor == nil {
				return h.Invoke(ctx, method, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h.Invoke(ctx, method, req.(*structpb.Struct))
			})
		},
	}
}

func listenHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Handler).Listen(req, stream)
}

// ServiceDesc builds the grpc.ServiceDesc for the bridge service.
func ServiceDesc() *grpc.ServiceDesc {
	methods := make([]grpc.MethodDesc, 0, len(UnaryMethods))
	for _, m := range UnaryMethods {
		methods = append(methods, unaryDesc(m))
	}
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*Handler)(nil),
		Methods:     methods,
		Streams: []grpc.StreamDesc{
			{
				StreamName:    MethodListen,
				Handler:       listenHandler,
				ServerStreams: true,
			},
		},
	}
}

// Register registers a handler on a gRPC server.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(ServiceDesc(), h)
}

// Invoke performs one unary bridge call over an established connection.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, args *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(method), args, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventStream receives envelopes from a Listen subscription.
type EventStream struct {
	stream grpc.ClientStream
}

// OpenListen starts a Listen subscription for one channel pattern. The
// stream stays open until the server closes it or ctx ends.
func OpenListen(ctx context.Context, conn grpc.ClientConnInterface, channel string) (*EventStream, error) {
	desc := &grpc.StreamDesc{
		StreamName:    MethodListen,
		ServerStreams: true,
	}
	stream, err := conn.NewStream(ctx, desc, FullMethod(MethodListen))
	if err != nil {
		return nil, err
	}
	req, err := ToStruct(ListenRequest{Channel: channel})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// Recv blocks for the next envelope. Returns io.EOF when the server closes
// the stream.
func (s *EventStream) Recv() (Envelope, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := FromStruct(msg, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
