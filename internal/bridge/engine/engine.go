// Package engine is the in-process bridge backend: the whole chat stack
// runs inside the client process, backed by the local sqlite store and the
// in-process event bus. It serves the same command surface the daemon
// does, so the shell cannot tell which one it is talking to.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waddle-social/app/internal/bridge"
	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/config"
	"github.com/waddle-social/app/internal/plugin"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// Engine is the in-process backend.
type Engine struct {
	selfJID  string
	db       *store.DB
	bus      *bus.Bus
	registry *plugin.Registry
	machine  *status.Machine
	cfg      *config.Config
	logger   *zap.Logger

	mu    sync.Mutex
	rooms map[string]string
}

// New assembles an engine over its session-scoped dependencies.
func New(selfJID string, db *store.DB, b *bus.Bus, registry *plugin.Registry, machine *status.Machine, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		selfJID:  selfJID,
		db:       db,
		bus:      b,
		registry: registry,
		machine:  machine,
		cfg:      cfg,
		logger:   logger,
		rooms:    make(map[string]string),
	}
}

// Name implements bridge.Backend.
func (e *Engine) Name() string { return "engine" }

// SendMessage persists an outgoing message and publishes it. When the
// engine is not online the message is additionally queued on the outbox
// for delivery once the connection returns.
func (e *Engine) SendMessage(_ context.Context, req bridgerpc.SendMessageRequest) (*chat.Message, error) {
	if req.To == "" {
		return nil, fmt.Errorf("send message: missing recipient")
	}
	if req.Body == "" {
		return nil, fmt.Errorf("send message: empty body")
	}
	msgType := req.Type
	if msgType == "" {
		msgType = chat.TypeChat
	}

	m := &chat.Message{
		ID:     uuid.NewString(),
		From:   e.selfJID,
		To:     req.To,
		Body:   req.Body,
		SentAt: time.Now().UTC(),
		Type:   msgType,
		Thread: req.Thread,
		Read:   true,
	}
	if err := e.db.UpsertMessage(req.To, m); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if e.machine.Current() != status.Online {
		if err := e.db.QueueOutbox(m.ID, req.To, req.Body); err != nil {
			return nil, fmt.Errorf("queue offline message: %w", err)
		}
		e.logger.Info("message queued for delivery",
			zap.String("msg_id", m.ID), zap.String("chat", req.To))
	}

	e.publish("xmpp.message.sent", *m)
	return m, nil
}

// GetRoster implements bridge.Backend.
func (e *Engine) GetRoster(context.Context) ([]chat.RosterItem, error) {
	return e.db.ListRoster()
}

// SetPresence broadcasts own presence.
func (e *Engine) SetPresence(_ context.Context, show chat.PresenceShow, statusText string) error {
	if !chat.ValidShow(show) {
		return fmt.Errorf("set presence: invalid show value %q", show)
	}
	e.publish("xmpp.presence.changed", map[string]any{
		"jid":    e.selfJID,
		"show":   string(show),
		"status": statusText,
	})
	return nil
}

// JoinRoom joins a multi-user chat room. Joining a room twice updates the
// nickname without a second join event.
func (e *Engine) JoinRoom(_ context.Context, room, nick string) error {
	if room == "" {
		return fmt.Errorf("join room: missing room jid")
	}
	if nick == "" {
		nick = localpart(e.selfJID)
	}

	e.mu.Lock()
	_, joined := e.rooms[room]
	e.rooms[room] = nick
	e.mu.Unlock()

	if !joined {
		e.publish("xmpp.muc.joined", map[string]any{"room": room, "nick": nick})
	}
	return nil
}

// LeaveRoom leaves a joined room.
func (e *Engine) LeaveRoom(_ context.Context, room string) error {
	e.mu.Lock()
	_, joined := e.rooms[room]
	delete(e.rooms, room)
	e.mu.Unlock()

	if !joined {
		return fmt.Errorf("leave room: not joined to %q", room)
	}
	e.publish("xmpp.muc.left", map[string]any{"room": room})
	return nil
}

// GetHistory implements bridge.Backend.
func (e *Engine) GetHistory(_ context.Context, chatJID string, limit int, before string) ([]chat.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return e.db.ListMessages(chatJID, limit, before)
}

// ManagePlugins implements bridge.Backend.
func (e *Engine) ManagePlugins(ctx context.Context, action plugin.Action) (*plugin.Info, error) {
	return e.registry.Apply(ctx, action)
}

// GetConfig returns a copy of the UI preference snapshot.
func (e *Engine) GetConfig(context.Context) (*chat.UiConfig, error) {
	ui := e.cfg.UI
	return &ui, nil
}

// GetStatus reports the engine state machine's current state.
func (e *Engine) GetStatus(context.Context) (string, error) {
	return strings.ToLower(string(e.machine.Current())), nil
}

// Subscribe adapts the in-process bus to the envelope shape the bridge
// delivers everywhere.
func (e *Engine) Subscribe(channel string, fn func(bridgerpc.Envelope)) (bridge.UnlistenFn, error) {
	unsub := e.bus.Subscribe(channel, func(evt bus.Event) {
		fn(bridgerpc.Envelope{
			Channel:   evt.Channel,
			Timestamp: evt.Timestamp,
			ID:        uuid.NewString(),
			Source:    "engine",
			Payload:   toRecord(evt.Payload),
		})
	})
	return bridge.UnlistenFn(unsub), nil
}

// Close implements bridge.Backend. The engine does not own its
// dependencies; the composition root closes the store.
func (e *Engine) Close() error { return nil }

func (e *Engine) publish(channel string, payload any) {
	e.bus.Publish(bus.Event{
		Channel:   channel,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// toRecord flattens an arbitrary payload into an open keyed record via its
// JSON form. Non-object payloads are wrapped under "value".
func toRecord(payload any) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"value": fmt.Sprint(payload)}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		var v any
		_ = json.Unmarshal(b, &v)
		return map[string]any{"value": v}
	}
	return m
}

func localpart(jid string) string {
	if i := strings.IndexByte(jid, '@'); i > 0 {
		return jid[:i]
	}
	return jid
}
