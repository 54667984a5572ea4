// Package outbox drains messages that were queued while the session was
// offline. Delivery is attempted whenever the session comes back online
// and on a slow periodic sweep, in queue order.
package outbox

import (
	"context"
	"time"

	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

const sweepInterval = 30 * time.Second

// Deliverer hands one queued message to the transport.
type Deliverer interface {
	Deliver(ctx context.Context, entry store.OutboxEntry) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, entry store.OutboxEntry) error

func (f DelivererFunc) Deliver(ctx context.Context, entry store.OutboxEntry) error {
	return f(ctx, entry)
}

// Sender watches the session state and drains the outbox while online.
type Sender struct {
	db        *store.DB
	deliverer Deliverer
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger

	kick     chan struct{}
	cancel   context.CancelFunc
	unlisten func()
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, d Deliverer, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Sender {
	return &Sender{
		db:        db,
		deliverer: d,
		bus:       b,
		machine:   machine,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Start begins draining. A transition to online triggers an immediate
// drain; otherwise the sweep ticker picks pending entries up.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.unlisten = s.bus.Subscribe("system.status.changed", func(evt bus.Event) {
		change, ok := evt.Payload.(status.StatusChange)
		if !ok || change.To != status.Online {
			return
		}
		select {
		case s.kick <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx)
}

// Stop halts the sender loop.
func (s *Sender) Stop() {
	if s.unlisten != nil {
		s.unlisten()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.kick:
			s.drain(ctx)
		case <-ticker.C:
			s.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// drain attempts delivery of every queued entry, oldest first. Failed
// entries are parked for user action rather than retried forever.
func (s *Sender) drain(ctx context.Context) {
	if s.machine.Current() != status.Online {
		return
	}

	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.deliverer.Deliver(ctx, entry); err != nil {
			s.logger.Error("delivery failed",
				zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.publish("xmpp.message.failed", map[string]any{
				"id":    entry.ClientMsgID,
				"chat":  entry.ChatJID,
				"error": err.Error(),
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sent",
				zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
			continue
		}
		s.logger.Info("queued message delivered", zap.String("client_msg_id", entry.ClientMsgID))
		s.publish("xmpp.message.delivered", map[string]any{
			"id":   entry.ClientMsgID,
			"chat": entry.ChatJID,
		})
	}
}

func (s *Sender) publish(channel string, payload map[string]any) {
	s.bus.Publish(bus.Event{
		Channel:   channel,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
