package plugin

import "fmt"

// Op selects which plugin operation an Action performs.
type Op string

const (
	OpInstall   Op = "install"
	OpUninstall Op = "uninstall"
	OpUpdate    Op = "update"
	OpGet       Op = "get"
)

// Action is a closed tagged union over the four plugin operations. Exactly
// one tag is active; the tag determines which field is required:
// install needs Reference, the others need PluginID.
type Action struct {
	Op        Op     `json:"action"`
	Reference string `json:"reference,omitempty"`
	PluginID  string `json:"pluginId,omitempty"`
}

// InstallAction installs the plugin identified by reference ("id" or "id@version").
func InstallAction(reference string) Action {
	return Action{Op: OpInstall, Reference: reference}
}

// UninstallAction removes an installed plugin.
func UninstallAction(pluginID string) Action {
	return Action{Op: OpUninstall, PluginID: pluginID}
}

// UpdateAction reinstalls a plugin at the latest resolvable version.
func UpdateAction(pluginID string) Action {
	return Action{Op: OpUpdate, PluginID: pluginID}
}

// GetAction reads the current info of an installed plugin. No side effects.
func GetAction(pluginID string) Action {
	return Action{Op: OpGet, PluginID: pluginID}
}

// Validate checks that the action carries a known tag and its required field.
func (a Action) Validate() error {
	switch a.Op {
	case OpInstall:
		if a.Reference == "" {
			return fmt.Errorf("install action requires a reference")
		}
	case OpUninstall, OpUpdate, OpGet:
		if a.PluginID == "" {
			return fmt.Errorf("%s action requires a plugin id", a.Op)
		}
	default:
		return fmt.Errorf("unknown plugin action %q", a.Op)
	}
	return nil
}
