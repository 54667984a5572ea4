// Package native is the bridge backend that talks to a session daemon
// over its unix domain socket. Commands are unary gRPC calls; events
// arrive on one server stream per subscribed channel, with local fanout
// preserving delivery order across subscribers of the same channel.
package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/waddle-social/app/internal/bridge"
	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/plugin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
)

// Native is the daemon-backed bridge backend.
type Native struct {
	conn   *grpc.ClientConn
	logger *zap.Logger

	mu      sync.Mutex
	fanouts map[string]*fanout
}

// Dial connects to the daemon socket. The connection is lazy; the first
// command performs the actual handshake.
func Dial(socketPath string, logger *zap.Logger) (*Native, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Native{
		conn:    conn,
		logger:  logger,
		fanouts: make(map[string]*fanout),
	}, nil
}

// Name implements bridge.Backend.
func (n *Native) Name() string { return "native" }

func (n *Native) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := bridgerpc.ToStruct(req)
	if err != nil {
		return err
	}
	out, err := bridgerpc.Invoke(ctx, n.conn, method, in)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return bridgerpc.FromStruct(out, resp)
}

// SendMessage implements bridge.Backend.
func (n *Native) SendMessage(ctx context.Context, req bridgerpc.SendMessageRequest) (*chat.Message, error) {
	var m chat.Message
	if err := n.invoke(ctx, bridgerpc.MethodSendMessage, req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetRoster implements bridge.Backend.
func (n *Native) GetRoster(ctx context.Context) ([]chat.RosterItem, error) {
	var resp bridgerpc.RosterResponse
	if err := n.invoke(ctx, bridgerpc.MethodGetRoster, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SetPresence implements bridge.Backend.
func (n *Native) SetPresence(ctx context.Context, show chat.PresenceShow, status string) error {
	req := bridgerpc.SetPresenceRequest{Show: show, Status: status}
	return n.invoke(ctx, bridgerpc.MethodSetPresence, req, nil)
}

// JoinRoom implements bridge.Backend.
func (n *Native) JoinRoom(ctx context.Context, room, nick string) error {
	return n.invoke(ctx, bridgerpc.MethodJoinRoom, bridgerpc.RoomRequest{Room: room, Nick: nick}, nil)
}

// LeaveRoom implements bridge.Backend.
func (n *Native) LeaveRoom(ctx context.Context, room string) error {
	return n.invoke(ctx, bridgerpc.MethodLeaveRoom, bridgerpc.RoomRequest{Room: room}, nil)
}

// GetHistory implements bridge.Backend.
func (n *Native) GetHistory(ctx context.Context, chatJID string, limit int, before string) ([]chat.Message, error) {
	req := bridgerpc.HistoryRequest{Chat: chatJID, Limit: limit, Before: before}
	var resp bridgerpc.HistoryResponse
	if err := n.invoke(ctx, bridgerpc.MethodGetHistory, req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ManagePlugins implements bridge.Backend.
func (n *Native) ManagePlugins(ctx context.Context, action plugin.Action) (*plugin.Info, error) {
	var info plugin.Info
	if err := n.invoke(ctx, bridgerpc.MethodManagePlugins, action, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetConfig implements bridge.Backend.
func (n *Native) GetConfig(ctx context.Context) (*chat.UiConfig, error) {
	var ui chat.UiConfig
	if err := n.invoke(ctx, bridgerpc.MethodGetConfig, struct{}{}, &ui); err != nil {
		return nil, err
	}
	return &ui, nil
}

// GetStatus implements bridge.Backend.
func (n *Native) GetStatus(ctx context.Context) (string, error) {
	var resp bridgerpc.StatusResponse
	if err := n.invoke(ctx, bridgerpc.MethodGetStatus, struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// Subscribe opens (or reuses) the Listen stream for the channel and adds
// the callback to its local fanout. The stream is closed when the last
// subscriber for the channel unlistens.
func (n *Native) Subscribe(channel string, fn func(bridgerpc.Envelope)) (bridge.UnlistenFn, error) {
	n.mu.Lock()
	f, ok := n.fanouts[channel]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := bridgerpc.OpenListen(ctx, n.conn, channel)
		if err != nil {
			cancel()
			n.mu.Unlock()
			return nil, fmt.Errorf("listen %q: %w", channel, err)
		}
		f = &fanout{cancel: cancel}
		n.fanouts[channel] = f
		go n.pump(channel, f, stream)
	}
	id := f.add(fn)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if f.remove(id) == 0 {
				f.cancel()
				if n.fanouts[channel] == f {
					delete(n.fanouts, channel)
				}
			}
		})
	}, nil
}

// pump reads one Listen stream and dispatches to the channel's
// subscribers in subscription order.
func (n *Native) pump(channel string, f *fanout, stream *bridgerpc.EventStream) {
	for {
		env, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && grpcstatus.Code(err) != codes.Canceled {
				n.logger.Warn("event stream closed",
					zap.String("channel", channel), zap.Error(err))
			}
			n.mu.Lock()
			if n.fanouts[channel] == f {
				delete(n.fanouts, channel)
			}
			n.mu.Unlock()
			return
		}
		f.dispatch(env)
	}
}

// Close tears down all streams and the connection.
func (n *Native) Close() error {
	n.mu.Lock()
	for channel, f := range n.fanouts {
		f.cancel()
		delete(n.fanouts, channel)
	}
	n.mu.Unlock()
	return n.conn.Close()
}

// fanout is the ordered local subscriber list for one channel stream.
type fanout struct {
	cancel context.CancelFunc

	mu   sync.Mutex
	next int
	subs []fanoutSub
}

type fanoutSub struct {
	id int
	fn func(bridgerpc.Envelope)
}

func (f *fanout) add(fn func(bridgerpc.Envelope)) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs = append(f.subs, fanoutSub{id: id, fn: fn})
	return id
}

// remove detaches a subscriber and returns how many remain.
func (f *fanout) remove(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	return len(f.subs)
}

func (f *fanout) dispatch(env bridgerpc.Envelope) {
	f.mu.Lock()
	fns := make([]func(bridgerpc.Envelope), len(f.subs))
	for i, s := range f.subs {
		fns[i] = s.fn
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}
}
