package bus

import "time"

// Event represents a domain event published on the bus.
// Channel is a lowercase dotted name, e.g. "ui.theme.changed".
type Event struct {
	Channel   string
	Timestamp time.Time
	Payload   any
}
