// Package bridge is the runtime seam between the client shell and
// whichever backend is actually present: a session daemon reached over
// its unix socket, or the in-process engine when no daemon is running.
// Callers never branch on the backend kind; they go through the Bridge
// facade, which resolves the backend exactly once per process.
package bridge

import (
	"context"

	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/plugin"
)

// UnlistenFn cancels one event subscription. Safe to call more than once.
type UnlistenFn func()

// Backend is the full command surface both backends implement. Every
// method is safe for concurrent use.
type Backend interface {
	// Name identifies the backend kind, "native" or "engine".
	Name() string

	SendMessage(ctx context.Context, req bridgerpc.SendMessageRequest) (*chat.Message, error)
	GetRoster(ctx context.Context) ([]chat.RosterItem, error)
	SetPresence(ctx context.Context, show chat.PresenceShow, status string) error
	JoinRoom(ctx context.Context, room, nick string) error
	LeaveRoom(ctx context.Context, room string) error
	GetHistory(ctx context.Context, chatJID string, limit int, before string) ([]chat.Message, error)
	ManagePlugins(ctx context.Context, action plugin.Action) (*plugin.Info, error)
	GetConfig(ctx context.Context) (*chat.UiConfig, error)
	GetStatus(ctx context.Context) (string, error)

	// Subscribe registers a callback for events on the given channel, or
	// namespace prefix when channel ends in ".". Callbacks on the same
	// channel fire in subscription order. The callback never fires again
	// once the returned UnlistenFn has run.
	Subscribe(channel string, fn func(bridgerpc.Envelope)) (UnlistenFn, error)

	Close() error
}
