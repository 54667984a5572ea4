package theme

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TviewSurface projects palettes onto tview's global Styles, the single
// style source every tview primitive reads from. Plugin tokens have no
// terminal rendering slot, so they are kept queryable for plugin-rendered
// views without touching Styles.
type TviewSurface struct {
	mu     sync.RWMutex
	tokens map[string]tcell.Color
	redraw func()
}

// NewTviewSurface creates a surface over tview.Styles. redraw is invoked
// after each palette swap so the application repaints with the new colors;
// pass nil when no application is running yet.
func NewTviewSurface(redraw func()) *TviewSurface {
	return &TviewSurface{
		tokens: make(map[string]tcell.Color),
		redraw: redraw,
	}
}

// ApplyPalette implements Surface. tview reads Styles on draw, so writing
// all fields before triggering a redraw makes the swap atomic from the
// user's point of view.
func (s *TviewSurface) ApplyPalette(p Palette) {
	s.mu.Lock()
	tview.Styles = tview.Theme{
		PrimitiveBackgroundColor:    p.Background,
		ContrastBackgroundColor:     p.Surface,
		MoreContrastBackgroundColor: p.Surface,
		PrimaryTextColor:            p.Foreground,
		SecondaryTextColor:          p.Muted,
		TertiaryTextColor:           p.Muted,
		InverseTextColor:            p.Background,
		ContrastSecondaryTextColor:  p.Accent,
		BorderColor:                 p.Border,
		TitleColor:                  p.Accent,
		GraphicsColor:               p.Border,
	}
	redraw := s.redraw
	s.mu.Unlock()

	if redraw != nil {
		redraw()
	}
}

// SetPluginToken implements Surface.
func (s *TviewSurface) SetPluginToken(pluginID, token string, color tcell.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[pluginID+"/"+token] = color
}

// ClearPluginTokens implements Surface.
func (s *TviewSurface) ClearPluginTokens(pluginID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := pluginID + "/"
	for k := range s.tokens {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.tokens, k)
		}
	}
}

// PluginToken returns a plugin's token color, if set.
func (s *TviewSurface) PluginToken(pluginID, token string) (tcell.Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.tokens[pluginID+"/"+token]
	return c, ok
}
