package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. Callbacks registered on
// a channel are invoked synchronously, in registration order, on every
// matching publish. There is no queuing and no replay: a callback registered
// after an event fired never observes that event.
type Bus struct {
	mu   sync.Mutex
	subs []*subscription
	next int
}

type subscription struct {
	id      int
	pattern string
	fn      func(Event)
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{}
}

// matches reports whether a subscription pattern covers a channel.
// A pattern ending in "." subscribes to the whole namespace prefix;
// anything else is an exact channel match.
func matches(pattern, channel string) bool {
	if strings.HasSuffix(pattern, ".") {
		return strings.HasPrefix(channel, pattern)
	}
	return pattern == channel
}

// Publish delivers an event to all matching subscribers. Delivery is
// synchronous within the caller's goroutine; a slow callback delays the
// callbacks registered after it.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	targets := make([]func(Event), 0, len(b.subs))
	for _, sub := range b.subs {
		if matches(sub.pattern, evt.Channel) {
			targets = append(targets, sub.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(evt)
	}
}

// Subscribe registers a callback for the given channel (or namespace prefix
// if pattern ends with "."). The returned cancel function detaches the
// callback; calling it more than once is a no-op.
func (b *Bus) Subscribe(pattern string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, &subscription{id: id, pattern: pattern, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}
