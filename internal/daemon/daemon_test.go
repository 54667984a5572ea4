package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/waddle-social/app/internal/bridge/engine"
	"github.com/waddle-social/app/internal/bridge/native"
	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/config"
	"github.com/waddle-social/app/internal/plugin"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type harness struct {
	client *native.Native
	bus    *bus.Bus
}

func startDaemon(t *testing.T) *harness {
	t.Helper()

	// Use a short path to avoid the unix socket length limit.
	tmpDir, err := os.MkdirTemp("/tmp", "waddle-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	socketPath := filepath.Join(tmpDir, "d.sock")

	db, err := store.Open(filepath.Join(tmpDir, "waddle.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}
	registry := plugin.NewRegistry(plugin.NewRefSource(), db, b, logger)
	eng := engine.New("alice@example.com", db, b, registry, machine, config.Default(), logger)
	svc := NewBridgeService(eng, logger)

	grpcSrv := grpc.NewServer()
	bridgerpc.Register(grpcSrv, svc)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = grpcSrv.Serve(listener) }()
	t.Cleanup(grpcSrv.GracefulStop)

	client, err := native.Dial(socketPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &harness{client: client, bus: b}
}

func TestCommandRoundtrip(t *testing.T) {
	h := startDaemon(t)
	ctx := context.Background()

	state, err := h.client.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if state != "online" {
		t.Errorf("state = %q, want online", state)
	}

	m, err := h.client.SendMessage(ctx, bridgerpc.SendMessageRequest{
		To:   "bob@example.com",
		Body: "hello over the wire",
	})
	if err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	if m.ID == "" || m.From != "alice@example.com" {
		t.Errorf("message = %+v", m)
	}

	hist, err := h.client.GetHistory(ctx, "bob@example.com", 10, "")
	if err != nil {
		t.Fatalf("GetHistory error = %v", err)
	}
	if len(hist) != 1 || hist[0].Body != "hello over the wire" {
		t.Errorf("history = %+v", hist)
	}

	ui, err := h.client.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig error = %v", err)
	}
	if ui.Theme != "system" {
		t.Errorf("config theme = %q", ui.Theme)
	}

	if err := h.client.SetPresence(ctx, chat.ShowAway, "brb"); err != nil {
		t.Errorf("SetPresence error = %v", err)
	}
	if err := h.client.JoinRoom(ctx, "go@conference.example.com", "al"); err != nil {
		t.Errorf("JoinRoom error = %v", err)
	}
	if err := h.client.LeaveRoom(ctx, "go@conference.example.com"); err != nil {
		t.Errorf("LeaveRoom error = %v", err)
	}
}

func TestManagePluginsRoundtrip(t *testing.T) {
	h := startDaemon(t)
	ctx := context.Background()

	info, err := h.client.ManagePlugins(ctx, plugin.InstallAction("echo-bot@1.0"))
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if info.ID != "echo-bot" || info.Version != "1.0" || info.Status != plugin.StatusActive {
		t.Errorf("info = %+v", info)
	}
	if info.ErrorReason != "" || info.ErrorCount != 0 {
		t.Errorf("fresh install carries error state: %+v", info)
	}

	// Unknown ids map to NotFound across the wire.
	_, err = h.client.ManagePlugins(ctx, plugin.GetAction("ghost"))
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("get ghost = %v, want NotFound", err)
	}
}

func TestSendMessageValidationOverWire(t *testing.T) {
	h := startDaemon(t)

	_, err := h.client.SendMessage(context.Background(), bridgerpc.SendMessageRequest{Body: "x"})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("error = %v, want InvalidArgument", err)
	}
}

func TestListenStream(t *testing.T) {
	h := startDaemon(t)

	events := make(chan bridgerpc.Envelope, 8)
	unlisten, err := h.client.Subscribe("xmpp.message.sent", func(env bridgerpc.Envelope) {
		events <- env
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unlisten()

	// Give the server a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	m, err := h.client.SendMessage(context.Background(), bridgerpc.SendMessageRequest{
		To: "bob@example.com", Body: "ping",
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case env := <-events:
		if env.Channel != "xmpp.message.sent" {
			t.Errorf("channel = %q", env.Channel)
		}
		if env.Payload["id"] != m.ID {
			t.Errorf("payload id = %v, want %s", env.Payload["id"], m.ID)
		}
		if env.Source != "engine" {
			t.Errorf("source = %q", env.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestListenOrderingAcrossSubscribers(t *testing.T) {
	h := startDaemon(t)

	var mu sync.Mutex
	var order []string

	u1, err := h.client.Subscribe("xmpp.muc.joined", func(env bridgerpc.Envelope) {
		mu.Lock()
		order = append(order, "first:"+env.Payload["room"].(string))
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer u1()
	u2, err := h.client.Subscribe("xmpp.muc.joined", func(env bridgerpc.Envelope) {
		mu.Lock()
		order = append(order, "second:"+env.Payload["room"].(string))
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer u2()

	time.Sleep(100 * time.Millisecond)
	if err := h.client.JoinRoom(context.Background(), "go@conference.example.com", "al"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d callbacks, want 2", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first:go@conference.example.com" || order[1] != "second:go@conference.example.com" {
		t.Errorf("order = %v, want subscription order preserved", order)
	}
}

func TestUnlistenStopsDelivery(t *testing.T) {
	h := startDaemon(t)

	var count int
	var mu sync.Mutex
	unlisten, err := h.client.Subscribe("xmpp.muc.joined", func(bridgerpc.Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	unlisten()
	unlisten() // idempotent
	time.Sleep(50 * time.Millisecond)

	if err := h.client.JoinRoom(context.Background(), "go@conference.example.com", "al"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("callback fired %d times after unlisten", count)
	}
}
