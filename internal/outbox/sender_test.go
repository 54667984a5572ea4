package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

// mockDeliverer records deliveries and returns a configurable error.
type mockDeliverer struct {
	mu    sync.Mutex
	calls []store.OutboxEntry
	err   error
}

func (m *mockDeliverer) Deliver(_ context.Context, entry store.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, entry)
	return m.err
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDrainOnOnlineTransition(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	machine := status.NewMachine(b)
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, machine, zap.NewNop())

	if err := db.QueueOutbox("c1", "bob@example.com", "hello"); err != nil {
		t.Fatal(err)
	}

	var delivered []string
	var mu sync.Mutex
	unsub := b.Subscribe("xmpp.message.delivered", func(evt bus.Event) {
		payload := evt.Payload.(map[string]any)
		mu.Lock()
		delivered = append(delivered, payload["id"].(string))
		mu.Unlock()
	})
	defer unsub()

	s.Start(context.Background())
	defer s.Stop()

	if err := machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return mock.count() == 1 })
	if mock.calls[0].ClientMsgID != "c1" || mock.calls[0].Body != "hello" {
		t.Errorf("delivered = %+v", mock.calls[0])
	}

	waitFor(t, func() bool {
		pending, err := db.PendingOutbox()
		return err == nil && len(pending) == 0
	})

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0] != "c1" {
		t.Errorf("delivered events = %v", delivered)
	}
}

func TestNoDrainWhileOffline(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	machine := status.NewMachine(b)
	mock := &mockDeliverer{}
	s := NewSender(db, mock, b, machine, zap.NewNop())

	if err := db.QueueOutbox("c1", "bob@example.com", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := machine.Transition(status.Offline); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := mock.count(); got != 0 {
		t.Errorf("delivered %d entries while offline, want 0", got)
	}
}

func TestFailedDeliveryParked(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	machine := status.NewMachine(b)
	mock := &mockDeliverer{err: errors.New("stream reset")}
	s := NewSender(db, mock, b, machine, zap.NewNop())

	if err := db.QueueOutbox("c1", "bob@example.com", "hello"); err != nil {
		t.Fatal(err)
	}

	var failures int
	var mu sync.Mutex
	unsub := b.Subscribe("xmpp.message.failed", func(bus.Event) {
		mu.Lock()
		failures++
		mu.Unlock()
	})
	defer unsub()

	s.Start(context.Background())
	defer s.Stop()

	if err := machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return mock.count() == 1 })
	waitFor(t, func() bool {
		pending, err := db.PendingOutbox()
		return err == nil && len(pending) == 0
	})

	mu.Lock()
	got := failures
	mu.Unlock()
	if got != 1 {
		t.Errorf("failure events = %d, want 1", got)
	}
}
