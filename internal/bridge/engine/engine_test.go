package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/config"
	"github.com/waddle-social/app/internal/plugin"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

func testEngine(t *testing.T) (*Engine, *bus.Bus, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	logger := zap.NewNop()
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}
	registry := plugin.NewRegistry(plugin.NewRefSource(), db, b, logger)
	e := New("alice@example.com", db, b, registry, machine, config.Default(), logger)
	return e, b, db
}

func TestSendMessage(t *testing.T) {
	e, _, _ := testEngine(t)

	var published []bridgerpc.Envelope
	unsub, err := e.Subscribe("xmpp.message.sent", func(env bridgerpc.Envelope) {
		published = append(published, env)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	m, err := e.SendMessage(context.Background(), bridgerpc.SendMessageRequest{
		To:   "bob@example.com",
		Body: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" {
		t.Error("message has no id")
	}
	if m.From != "alice@example.com" || m.To != "bob@example.com" {
		t.Errorf("addressing = %q -> %q", m.From, m.To)
	}
	if m.Type != chat.TypeChat {
		t.Errorf("type = %q, want chat default", m.Type)
	}
	if m.SentAt.IsZero() {
		t.Error("SentAt not set")
	}

	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	env := published[0]
	if env.Source != "engine" || env.ID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Payload["id"] != m.ID {
		t.Errorf("payload id = %v, want %s", env.Payload["id"], m.ID)
	}

	hist, err := e.GetHistory(context.Background(), "bob@example.com", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ID != m.ID {
		t.Errorf("history = %+v", hist)
	}
}

func TestSendMessageValidation(t *testing.T) {
	e, _, _ := testEngine(t)

	if _, err := e.SendMessage(context.Background(), bridgerpc.SendMessageRequest{Body: "x"}); err == nil {
		t.Error("missing recipient should fail")
	}
	if _, err := e.SendMessage(context.Background(), bridgerpc.SendMessageRequest{To: "bob@example.com"}); err == nil {
		t.Error("empty body should fail")
	}
}

func TestSendMessageOfflineQueues(t *testing.T) {
	e, _, db := testEngine(t)
	if err := e.machine.Transition(status.Offline); err != nil {
		t.Fatal(err)
	}

	m, err := e.SendMessage(context.Background(), bridgerpc.SendMessageRequest{
		To:   "bob@example.com",
		Body: "are you there",
	})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != m.ID {
		t.Errorf("pending = %+v, want the offline message queued", pending)
	}
}

func TestSendMessageOnlineDoesNotQueue(t *testing.T) {
	e, _, db := testEngine(t)

	if _, err := e.SendMessage(context.Background(), bridgerpc.SendMessageRequest{
		To: "bob@example.com", Body: "hi",
	}); err != nil {
		t.Fatal(err)
	}
	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("online send queued to outbox: %+v", pending)
	}
}

func TestSetPresence(t *testing.T) {
	e, _, _ := testEngine(t)

	var got bridgerpc.Envelope
	unlisten, err := e.Subscribe("xmpp.presence.changed", func(env bridgerpc.Envelope) { got = env })
	if err != nil {
		t.Fatal(err)
	}
	defer unlisten()

	if err := e.SetPresence(context.Background(), chat.ShowAway, "brb"); err != nil {
		t.Fatal(err)
	}
	if got.Payload["show"] != "away" || got.Payload["status"] != "brb" {
		t.Errorf("payload = %v", got.Payload)
	}

	if err := e.SetPresence(context.Background(), "lurking", ""); err == nil {
		t.Error("invalid show value should fail")
	}
}

func TestRooms(t *testing.T) {
	e, _, _ := testEngine(t)

	var joins, leaves int
	u1, _ := e.Subscribe("xmpp.muc.joined", func(bridgerpc.Envelope) { joins++ })
	defer u1()
	u2, _ := e.Subscribe("xmpp.muc.left", func(bridgerpc.Envelope) { leaves++ })
	defer u2()

	if err := e.JoinRoom(context.Background(), "go@conference.example.com", ""); err != nil {
		t.Fatal(err)
	}
	// Re-join updates the nick silently.
	if err := e.JoinRoom(context.Background(), "go@conference.example.com", "al"); err != nil {
		t.Fatal(err)
	}
	if joins != 1 {
		t.Errorf("join events = %d, want 1", joins)
	}

	if err := e.LeaveRoom(context.Background(), "go@conference.example.com"); err != nil {
		t.Fatal(err)
	}
	if leaves != 1 {
		t.Errorf("leave events = %d, want 1", leaves)
	}
	if err := e.LeaveRoom(context.Background(), "go@conference.example.com"); err == nil {
		t.Error("leaving a room twice should fail")
	}
}

func TestGetStatusAndConfig(t *testing.T) {
	e, _, _ := testEngine(t)

	state, err := e.GetStatus(context.Background())
	if err != nil || state != "online" {
		t.Errorf("status = %q, %v", state, err)
	}

	ui, err := e.GetConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ui.Theme != "system" || ui.ThemeName != "dark" {
		t.Errorf("config = %+v", ui)
	}
	// The snapshot is a copy.
	ui.Theme = "mutated"
	again, _ := e.GetConfig(context.Background())
	if again.Theme != "system" {
		t.Error("GetConfig returned shared state")
	}
}

func TestManagePluginsThroughEngine(t *testing.T) {
	e, _, _ := testEngine(t)

	info, err := e.ManagePlugins(context.Background(), plugin.InstallAction("echo-bot@1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != plugin.StatusActive {
		t.Errorf("status = %s", info.Status)
	}
}

func TestSubscribeNamespaceAndUnlisten(t *testing.T) {
	e, _, _ := testEngine(t)

	var channels []string
	unlisten, err := e.Subscribe("xmpp.", func(env bridgerpc.Envelope) {
		channels = append(channels, env.Channel)
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = e.SetPresence(context.Background(), chat.ShowChat, "")
	_ = e.JoinRoom(context.Background(), "go@conference.example.com", "al")

	unlisten()
	unlisten() // second call is a no-op
	_ = e.LeaveRoom(context.Background(), "go@conference.example.com")

	want := []string{"xmpp.presence.changed", "xmpp.muc.joined"}
	if len(channels) != len(want) {
		t.Fatalf("channels = %v, want %v", channels, want)
	}
	for i := range want {
		if channels[i] != want[i] {
			t.Errorf("channels[%d] = %q, want %q", i, channels[i], want[i])
		}
	}
}
