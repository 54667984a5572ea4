package theme

import "sync"

// Scheme is the OS-level light/dark preference.
type Scheme string

const (
	SchemeLight Scheme = "light"
	SchemeDark  Scheme = "dark"
)

// PaletteFor maps a scheme to its built-in palette.
func PaletteFor(s Scheme) Palette {
	if s == SchemeLight {
		return Light()
	}
	return Dark()
}

// SchemeSource reports the platform color-scheme preference and notifies
// on change. Terminals expose no such signal, so the default source is a
// fixed dark preference; desktop shells plug in their own.
type SchemeSource interface {
	Current() Scheme
	Subscribe(fn func(Scheme)) (cancel func())
}

// StaticScheme is a SchemeSource that never changes.
type StaticScheme Scheme

func (s StaticScheme) Current() Scheme                        { return Scheme(s) }
func (s StaticScheme) Subscribe(func(Scheme)) (cancel func()) { return func() {} }

// NotifyScheme is a settable SchemeSource. Set updates the current scheme
// and invokes subscribers in subscription order.
type NotifyScheme struct {
	mu      sync.Mutex
	current Scheme
	nextID  int
	subs    []schemeSub
}

type schemeSub struct {
	id int
	fn func(Scheme)
}

// NewNotifyScheme creates a source starting at the given scheme.
func NewNotifyScheme(initial Scheme) *NotifyScheme {
	return &NotifyScheme{current: initial}
}

// Current implements SchemeSource.
func (n *NotifyScheme) Current() Scheme {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Subscribe implements SchemeSource.
func (n *NotifyScheme) Subscribe(fn func(Scheme)) (cancel func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs = append(n.subs, schemeSub{id: id, fn: fn})
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.subs {
			if sub.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Set changes the scheme and notifies subscribers. Setting the same
// scheme again is a no-op.
func (n *NotifyScheme) Set(s Scheme) {
	n.mu.Lock()
	if n.current == s {
		n.mu.Unlock()
		return
	}
	n.current = s
	fns := make([]func(Scheme), 0, len(n.subs))
	for _, sub := range n.subs {
		fns = append(fns, sub.fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
