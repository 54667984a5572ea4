package bridge

import (
	"context"

	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/plugin"
	"go.uber.org/zap"
)

// Bridge is the facade the rest of the application talks to. Each command
// resolves the backend (a no-op after the first call) and delegates.
// Backend errors pass through unwrapped so callers can match sentinel
// errors like plugin.ErrNotInstalled.
type Bridge struct {
	resolver *Resolver
}

// New creates a bridge over a detector.
func New(detect Detector, logger *zap.Logger) *Bridge {
	return &Bridge{resolver: NewResolver(detect, logger)}
}

// Ready reports whether the backend has been resolved.
func (b *Bridge) Ready() bool {
	return b.resolver.Ready()
}

// BackendName returns the resolved backend's kind, or "" before resolution.
func (b *Bridge) BackendName() string {
	if !b.resolver.Ready() {
		return ""
	}
	return b.resolver.backend.Name()
}

// SendMessage sends one message and returns its immutable record.
func (b *Bridge) SendMessage(ctx context.Context, req bridgerpc.SendMessageRequest) (*chat.Message, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.SendMessage(ctx, req)
}

// GetRoster returns the current roster snapshot.
func (b *Bridge) GetRoster(ctx context.Context) ([]chat.RosterItem, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.GetRoster(ctx)
}

// SetPresence updates own presence.
func (b *Bridge) SetPresence(ctx context.Context, show chat.PresenceShow, status string) error {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return be.SetPresence(ctx, show, status)
}

// JoinRoom joins a multi-user chat room.
func (b *Bridge) JoinRoom(ctx context.Context, room, nick string) error {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return be.JoinRoom(ctx, room, nick)
}

// LeaveRoom leaves a multi-user chat room.
func (b *Bridge) LeaveRoom(ctx context.Context, room string) error {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return be.LeaveRoom(ctx, room)
}

// GetHistory pages backwards through a chat's stored messages.
func (b *Bridge) GetHistory(ctx context.Context, chatJID string, limit int, before string) ([]chat.Message, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.GetHistory(ctx, chatJID, limit, before)
}

// ManagePlugins applies one plugin action and returns the resulting info.
func (b *Bridge) ManagePlugins(ctx context.Context, action plugin.Action) (*plugin.Info, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.ManagePlugins(ctx, action)
}

// GetConfig returns the backend-held UI preference snapshot.
func (b *Bridge) GetConfig(ctx context.Context) (*chat.UiConfig, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.GetConfig(ctx)
}

// GetStatus returns the backend connection state.
func (b *Bridge) GetStatus(ctx context.Context) (string, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return be.GetStatus(ctx)
}

// Listen subscribes to events on a channel or namespace prefix.
func (b *Bridge) Listen(ctx context.Context, channel string, fn func(bridgerpc.Envelope)) (UnlistenFn, error) {
	be, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return be.Subscribe(channel, fn)
}

// Close releases the resolved backend.
func (b *Bridge) Close() error {
	return b.resolver.Close()
}
