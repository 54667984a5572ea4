package plugin

import (
	"context"
	"strings"
)

// ExtensionSurface describes where and how the UI layer mounts a
// plugin-contributed component. Component follows the fixed naming
// convention "<Name>Settings" with the display name collapsed to one word.
type ExtensionSurface struct {
	Container string
	Component string
}

// ContainerPluginPane is the generic surface plugin components mount into.
// The plugin id is passed to the component for scoping.
const ContainerPluginPane = "plugin-container"

// surfaceSpec declares the extension surface a capability contributes.
// Kept as a lookup table so the capability-to-surface mapping is auditable
// in one place rather than synthesized at call sites.
type surfaceSpec struct {
	container       string
	componentSuffix string
}

var surfaceByCapability = map[Capability]surfaceSpec{
	CapGUIMetadata: {container: ContainerPluginPane, componentSuffix: "Settings"},
}

// SurfaceFor returns the extension surface for the plugin, if any of its
// capabilities contributes one.
func SurfaceFor(info Info) (ExtensionSurface, bool) {
	for _, c := range info.Capabilities {
		spec, ok := surfaceByCapability[c]
		if !ok {
			continue
		}
		return ExtensionSurface{
			Container: spec.container,
			Component: componentName(info.Name) + spec.componentSuffix,
		}, true
	}
	return ExtensionSurface{}, false
}

func componentName(name string) string {
	return strings.ReplaceAll(name, " ", "")
}

// Getter fetches live info for a plugin id; typically the bridge facade's
// plugin management with a get action.
type Getter func(ctx context.Context, action Action) (*Info, error)

// Describe returns the freshest available info for an installed plugin.
// When the live lookup fails, it degrades to the statically known record
// rather than surfacing an error: capability-derived extension points must
// never take down the surrounding view.
func Describe(ctx context.Context, get Getter, installed Info) Info {
	info, err := get(ctx, GetAction(installed.ID))
	if err != nil || info == nil {
		return installed
	}
	return *info
}
