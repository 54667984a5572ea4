// Package ingest persists inbound chat events. It subscribes to the
// "xmpp." namespace on the bus and writes messages, roster updates, and
// presence changes into the store, idempotently: replaying an event never
// duplicates a row.
package ingest

import (
	"fmt"
	"strings"

	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

// PresenceUpdate is the payload published for a contact presence change.
type PresenceUpdate struct {
	JID      string        `json:"jid"`
	Presence chat.Presence `json:"presence"`
}

// Ingestor writes inbound events into the store.
type Ingestor struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	unlisten []func()
}

// New creates an ingestor over the session store.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Ingestor {
	return &Ingestor{db: db, bus: b, logger: logger}
}

// Start subscribes to inbound event channels.
func (in *Ingestor) Start() {
	in.unlisten = []func(){
		in.bus.Subscribe("xmpp.message.received", in.onMessage),
		in.bus.Subscribe("xmpp.roster.updated", in.onRoster),
		in.bus.Subscribe("xmpp.presence.contact", in.onPresence),
	}
}

// Stop detaches all subscriptions.
func (in *Ingestor) Stop() {
	for _, fn := range in.unlisten {
		fn()
	}
	in.unlisten = nil
}

func (in *Ingestor) onMessage(evt bus.Event) {
	msg, ok := evt.Payload.(chat.Message)
	if !ok {
		return
	}
	if err := in.IngestMessage(msg); err != nil {
		in.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.ID))
	}
}

func (in *Ingestor) onRoster(evt bus.Event) {
	item, ok := evt.Payload.(chat.RosterItem)
	if !ok {
		return
	}
	if err := in.IngestRosterItem(item); err != nil {
		in.logger.Error("failed to ingest roster item", zap.Error(err), zap.String("jid", item.JID))
	}
}

func (in *Ingestor) onPresence(evt bus.Event) {
	update, ok := evt.Payload.(PresenceUpdate)
	if !ok {
		return
	}
	if err := in.db.UpdatePresence(bareJID(update.JID), update.Presence); err != nil {
		in.logger.Error("failed to update presence", zap.Error(err), zap.String("jid", update.JID))
	}
}

// IngestMessage stores one inbound message under the sender's chat.
func (in *Ingestor) IngestMessage(msg chat.Message) error {
	chatJID := bareJID(msg.From)
	if chatJID == "" {
		return fmt.Errorf("message %q has no sender", msg.ID)
	}
	if err := in.db.UpsertMessage(chatJID, &msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// IngestRosterItem applies one roster push. A "remove" subscription
// deletes the contact.
func (in *Ingestor) IngestRosterItem(item chat.RosterItem) error {
	if item.Subscription == chat.SubRemove {
		return in.db.RemoveRosterItem(item.JID)
	}
	return in.db.UpsertRosterItem(&item)
}

// bareJID strips the resource part of a JID.
func bareJID(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}
