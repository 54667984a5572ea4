package theme

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Surface is a render target themes are applied to. ApplyPalette replaces
// all role colors in one step: observers never see a half-applied palette.
// Plugin tokens live in a separate namespaced space and can never shadow a
// role color.
type Surface interface {
	ApplyPalette(p Palette)
	SetPluginToken(pluginID, token string, color tcell.Color)
	ClearPluginTokens(pluginID string)
}

// MemorySurface records applied palettes and tokens. Used in tests and as
// the headless surface when no terminal is attached.
type MemorySurface struct {
	mu      sync.RWMutex
	palette Palette
	applied int
	tokens  map[string]tcell.Color
}

// NewMemorySurface returns an empty in-memory surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{tokens: make(map[string]tcell.Color)}
}

// ApplyPalette implements Surface.
func (s *MemorySurface) ApplyPalette(p Palette) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.palette = p
	s.applied++
}

// Palette returns the last applied palette.
func (s *MemorySurface) Palette() Palette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.palette
}

// Applied returns how many palettes have been applied.
func (s *MemorySurface) Applied() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

// SetPluginToken implements Surface.
func (s *MemorySurface) SetPluginToken(pluginID, token string, color tcell.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[pluginID+"/"+token] = color
}

// ClearPluginTokens implements Surface.
func (s *MemorySurface) ClearPluginTokens(pluginID string) {
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
func (s *MemorySurface) PluginToken(pluginID, token string) (tcell.Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.tokens[pluginID+"/"+token]
	return c, ok
}
