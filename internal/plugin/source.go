package plugin

import (
	"context"
	"fmt"
	"strings"
)

// Source resolves plugin references to manifests. Implementations may talk
// to a real registry; RefSource resolves purely from the reference string.
type Source interface {
	// Resolve resolves "id" (latest) or "id@version" to a manifest.
	Resolve(ctx context.Context, reference string) (Manifest, error)
}

// RefSource resolves references without any remote registry: the id and
// version are taken from the reference itself and the display name is
// derived from the id. Capabilities may be pre-registered per plugin id.
type RefSource struct {
	Capabilities map[string][]Capability
}

// NewRefSource creates a reference-only source.
func NewRefSource() *RefSource {
	return &RefSource{}
}

// Resolve implements Source.
func (s *RefSource) Resolve(_ context.Context, reference string) (Manifest, error) {
	id, version := SplitReference(reference)
	if id == "" {
		return Manifest{}, fmt.Errorf("invalid plugin reference %q", reference)
	}
	if version == "" {
		version = "latest"
	}
	return Manifest{
		ID:           id,
		Name:         DisplayName(id),
		Version:      version,
		Capabilities: s.Capabilities[id],
	}, nil
}

// SplitReference splits "id@version" into its parts. Version is empty when
// the reference carries none.
func SplitReference(reference string) (id, version string) {
	id, version, _ = strings.Cut(reference, "@")
	return id, version
}

// DisplayName derives a human-readable name from a plugin id:
// "echo-bot" becomes "Echo Bot".
func DisplayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
