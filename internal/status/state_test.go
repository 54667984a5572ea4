package status

import (
	"testing"

	"github.com/waddle-social/app/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Online},
		{Booting, Offline},
		{Booting, Error},
		{Online, Offline},
		{Offline, Online},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Error)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(ERROR -> ONLINE) should fail; must reboot first")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	var got []bus.Event
	unsub := b.Subscribe("system.", func(evt bus.Event) {
		got = append(got, evt)
	})
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Online); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Channel != "system.status.changed" {
		t.Errorf("event channel = %q, want system.status.changed", got[0].Channel)
	}
	change, ok := got[0].Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", got[0].Payload)
	}
	if change.From != Booting || change.To != Online {
		t.Errorf("change = %v -> %v, want BOOTING -> ONLINE", change.From, change.To)
	}
}

// TestOfflineOnlineCycle simulates going offline and back while running.
func TestOfflineOnlineCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	steps := []State{Offline, Online, Offline, Online}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Online {
		t.Errorf("final state = %s, want ONLINE", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting: {},
		Online:  {Online},
		Offline: {Offline},
		Error:   {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
