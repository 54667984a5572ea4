package plugin

import "slices"

// Status is the closed set of plugin lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusError    Status = "error"
	StatusRemoved  Status = "removed"
)

// Capability is a marker a plugin declares for an optional feature.
type Capability string

const (
	CapEventHandler    Capability = "event-handler"
	CapStanzaProcessor Capability = "stanza-processor"
	CapTUIRenderer     Capability = "tui-renderer"
	CapGUIMetadata     Capability = "gui-metadata"
)

// Info describes one installed or queried plugin. ErrorReason is set only
// when Status is StatusError.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Status       Status       `json:"status"`
	ErrorReason  string       `json:"errorReason,omitempty"`
	ErrorCount   int          `json:"errorCount"`
	Capabilities []Capability `json:"capabilities"`
}

// Has reports whether the plugin declares the given capability.
func (i Info) Has(c Capability) bool {
	return slices.Contains(i.Capabilities, c)
}

// Manifest is the metadata a Source resolves a reference to.
type Manifest struct {
	ID           string
	Name         string
	Version      string
	Capabilities []Capability
}
