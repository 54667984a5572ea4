package theme

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/waddle-social/app/internal/bus"
	"go.uber.org/zap"
)

// ChoiceSystem makes the manager follow the platform scheme preference
// instead of a fixed named theme.
const ChoiceSystem = "system"

// Manager owns theme state: which theme the user chose, which palette is
// currently rendered, and the plugin-contributed color tokens. All theme
// changes funnel through it so the surface only ever sees whole palettes.
type Manager struct {
	surface Surface
	source  SchemeSource
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.Mutex
	choice   string
	rendered string
}

// NewManager creates a manager over the given surface. source decides what
// the "system" choice resolves to.
func NewManager(surface Surface, source SchemeSource, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		surface: surface,
		source:  source,
		bus:     b,
		logger:  logger,
		choice:  ChoiceSystem,
	}
}

// SetChoice selects a theme by name, or ChoiceSystem to follow the
// platform preference. Unknown names are ignored: the current theme
// stays rendered and no event is published.
func (m *Manager) SetChoice(name string) {
	resolved := name
	if name == ChoiceSystem {
		resolved = PaletteNameFor(m.source.Current())
	}
	p, ok := Builtin(resolved)
	if !ok {
		m.logger.Warn("ignoring unknown theme", zap.String("theme", name))
		return
	}

	m.mu.Lock()
	m.choice = name
	m.rendered = resolved
	m.mu.Unlock()

	m.surface.ApplyPalette(p)
	m.publish(resolved)
}

// Choice returns the current selection ("system" or a theme name).
func (m *Manager) Choice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.choice
}

// Rendered returns the name of the palette currently on the surface.
func (m *Manager) Rendered() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}

// ApplyPluginColors writes a plugin's color tokens to the surface. Tokens
// are scoped to the plugin id; role colors are never touched, so a plugin
// cannot restyle the application chrome.
func (m *Manager) ApplyPluginColors(pluginID string, colors map[string]string) {
	for token, value := range colors {
		c := tcell.GetColor(value)
		if c == tcell.ColorDefault && value != "default" {
			m.logger.Warn("ignoring invalid plugin color",
				zap.String("plugin", pluginID),
				zap.String("token", token),
				zap.String("value", value))
			continue
		}
		m.surface.SetPluginToken(pluginID, token, c)
	}
}

// RemovePluginColors drops all of a plugin's tokens, typically on
// uninstall.
func (m *Manager) RemovePluginColors(pluginID string) {
	m.surface.ClearPluginTokens(pluginID)
}

// Start renders the initial palette and begins reacting to theme events
// and platform scheme changes. The returned stop function cancels both
// subscriptions.
func (m *Manager) Start() (stop func()) {
	m.SetChoice(m.Choice())

	var unsubBus func()
	if m.bus != nil {
		unsubBus = m.bus.Subscribe("ui.theme.changed", func(evt bus.Event) {
			name, ok := eventThemeName(evt.Payload)
			if !ok {
				return
			}
			m.mu.Lock()
			already := m.rendered == name
			m.mu.Unlock()
			if already {
				return
			}
			// Remote events override what is rendered, not the stored
			// choice: the preference survives, the screen follows.
			p, known := Builtin(name)
			if !known {
				m.logger.Warn("ignoring unknown theme event", zap.String("theme", name))
				return
			}
			m.mu.Lock()
			m.rendered = name
			m.mu.Unlock()
			m.surface.ApplyPalette(p)
		})
	}

	unsubScheme := m.source.Subscribe(func(s Scheme) {
		m.mu.Lock()
		follow := m.choice == ChoiceSystem
		m.mu.Unlock()
		// A fixed named theme does not track the platform.
		if !follow {
			return
		}
		m.SetChoice(ChoiceSystem)
	})

	return func() {
		if unsubBus != nil {
			unsubBus()
		}
		unsubScheme()
	}
}

// PaletteNameFor returns the built-in palette name a scheme resolves to.
func PaletteNameFor(s Scheme) string {
	if s == SchemeLight {
		return "light"
	}
	return "dark"
}

func (m *Manager) publish(resolved string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Channel:   "ui.theme.changed",
		Timestamp: time.Now(),
		Payload:   map[string]any{"name": resolved},
	})
}

// eventThemeName extracts the theme name from a ui.theme.changed payload.
// The canonical shape is {name: string}; a bare string is accepted for
// hand-published events.
func eventThemeName(payload any) (string, bool) {
	switch p := payload.(type) {
	case string:
		return p, p != ""
	case map[string]any:
		name, ok := p["name"].(string)
		return name, ok && name != ""
	}
	return "", false
}
