package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/waddle-social/app/internal/bridge/engine"
	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/plugin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// eventBuffer bounds per-subscription queuing between the bus callback
// and the stream writer. A subscriber that falls this far behind loses
// its stream rather than stalling publishers.
const eventBuffer = 256

// BridgeService serves the bridge gRPC surface by delegating every
// command to the daemon's engine. The client's native backend and this
// service are the two ends of the same record contract.
type BridgeService struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewBridgeService wraps an engine for serving.
func NewBridgeService(e *engine.Engine, logger *zap.Logger) *BridgeService {
	return &BridgeService{engine: e, logger: logger}
}

// Invoke implements bridgerpc.Handler.
func (s *BridgeService) Invoke(ctx context.Context, method string, args *structpb.Struct) (*structpb.Struct, error) {
	switch method {
	case bridgerpc.MethodSendMessage:
		var req bridgerpc.SendMessageRequest
		if err := bridgerpc.FromStruct(args, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		m, err := s.engine.SendMessage(ctx, req)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "send message: %v", err)
		}
		return encode(*m)

	case bridgerpc.MethodGetRoster:
		items, err := s.engine.GetRoster(ctx)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "get roster: %v", err)
		}
		return encode(bridgerpc.RosterResponse{Items: items})

	case bridgerpc.MethodSetPresence:
		var req bridgerpc.SetPresenceRequest
		if err := bridgerpc.FromStruct(args, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		if err := s.engine.SetPresence(ctx, req.Show, req.Status); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		return encode(bridgerpc.Ack{OK: true})

	case bridgerpc.MethodJoinRoom:
		var req bridgerpc.RoomRequest
		if err := bridgerpc.FromStruct(args, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		if err := s.engine.JoinRoom(ctx, req.Room, req.Nick); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		return encode(bridgerpc.Ack{OK: true})

	case bridgerpc.MethodLeaveRoom:
		var req bridgerpc.RoomRequest
		if err := bridgerpc.FromStruct(args, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		if err := s.engine.LeaveRoom(ctx, req.Room); err != nil {
			return nil, grpcstatus.Errorf(codes.FailedPrecondition, "%v", err)
		}
		return encode(bridgerpc.Ack{OK: true})

	case bridgerpc.MethodGetHistory:
		var req bridgerpc.HistoryRequest
		if err := bridgerpc.FromStruct(args, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		msgs, err := s.engine.GetHistory(ctx, req.Chat, req.Limit, req.Before)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "get history: %v", err)
		}
		return encode(bridgerpc.HistoryResponse{Messages: msgs})

	case bridgerpc.MethodManagePlugins:
		var action plugin.Action
		if err := bridgerpc.FromStruct(args, &action); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		info, err := s.engine.ManagePlugins(ctx, action)
		if err != nil {
			if errors.Is(err, plugin.ErrNotInstalled) {
				return nil, grpcstatus.Errorf(codes.NotFound, "%v", err)
			}
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		return encode(*info)

	case bridgerpc.MethodGetConfig:
		ui, err := s.engine.GetConfig(ctx)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "get config: %v", err)
		}
		return encode(*ui)

	case bridgerpc.MethodGetStatus:
		state, err := s.engine.GetStatus(ctx)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "get status: %v", err)
		}
		return encode(bridgerpc.StatusResponse{State: state})

	default:
		return nil, grpcstatus.Errorf(codes.Unimplemented, "unknown method %q", method)
	}
}

// Listen implements bridgerpc.Handler. Events for the requested channel
// are forwarded until the client goes away or falls too far behind.
func (s *BridgeService) Listen(req *structpb.Struct, stream grpc.ServerStream) error {
	var sub bridgerpc.ListenRequest
	if err := bridgerpc.FromStruct(req, &sub); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	if sub.Channel == "" {
		return grpcstatus.Errorf(codes.InvalidArgument, "missing channel")
	}

	events := make(chan bridgerpc.Envelope, eventBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once

	unlisten, err := s.engine.Subscribe(sub.Channel, func(env bridgerpc.Envelope) {
		select {
		case events <- env:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	})
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "%v", err)
	}
	defer unlisten()

	s.logger.Debug("listen opened", zap.String("channel", sub.Channel))
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-overflow:
			return grpcstatus.Errorf(codes.ResourceExhausted, "subscriber too slow on %q", sub.Channel)
		case env := <-events:
			msg, err := bridgerpc.ToStruct(env)
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "%v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func encode(v any) (*structpb.Struct, error) {
	s, err := bridgerpc.ToStruct(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
