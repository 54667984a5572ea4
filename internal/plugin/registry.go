package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

// ErrNotInstalled is returned for uninstall/update/get on an unknown id.
var ErrNotInstalled = errors.New("plugin not installed")

// Registry tracks installed plugins and applies plugin actions. Operation
// failures that concern the plugin itself (an unresolvable reference, a
// failed update) are represented as data on the returned Info — status,
// error reason, error count — not as errors, so callers can render a
// failed-plugin state. Errors are reserved for invalid actions and unknown
// plugin ids.
type Registry struct {
	mu      sync.RWMutex
	source  Source
	db      *store.DB
	bus     *bus.Bus
	logger  *zap.Logger
	plugins map[string]*Info
}

// NewRegistry creates an empty registry backed by the given source. db
// backs the per-plugin key/value stores; pass nil when plugins have no
// persistence.
func NewRegistry(source Source, db *store.DB, b *bus.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		source:  source,
		db:      db,
		bus:     b,
		logger:  logger,
		plugins: make(map[string]*Info),
	}
}

// KV returns the namespaced key/value store of an installed plugin.
func (r *Registry) KV(pluginID string) (*KV, error) {
	r.mu.RLock()
	_, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kv %q: %w", pluginID, ErrNotInstalled)
	}
	if r.db == nil {
		return nil, errors.New("plugin storage not attached")
	}
	return NewKV(pluginID, r.db, DefaultQuota()), nil
}

// Apply executes one plugin action and returns the resulting plugin info.
func (r *Registry) Apply(ctx context.Context, action Action) (*Info, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	switch action.Op {
	case OpInstall:
		return r.install(ctx, action.Reference)
	case OpUninstall:
		return r.uninstall(action.PluginID)
	case OpUpdate:
		return r.update(ctx, action.PluginID)
	default:
		return r.get(action.PluginID)
	}
}

// List returns a snapshot of all known plugins, including errored ones.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.plugins))
	for _, info := range r.plugins {
		out = append(out, *info)
	}
	return out
}

// install resolves the reference and records the plugin. Installing an
// already-installed id is a reinstall at the referenced version; the
// previous error count carries over.
func (r *Registry) install(ctx context.Context, reference string) (*Info, error) {
	m, err := r.source.Resolve(ctx, reference)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		id, _ := SplitReference(reference)
		if id == "" {
			id = reference
		}
		info := r.recordFailureLocked(id, err)
		return info, nil
	}

	prevCount := 0
	if prev, ok := r.plugins[m.ID]; ok {
		prevCount = prev.ErrorCount
	}
	info := &Info{
		ID:           m.ID,
		Name:         m.Name,
		Version:      m.Version,
		Status:       StatusActive,
		ErrorCount:   prevCount,
		Capabilities: m.Capabilities,
	}
	r.plugins[m.ID] = info
	r.logger.Info("plugin installed", zap.String("plugin", m.ID), zap.String("version", m.Version))
	r.publish("plugin.installed", m.ID)

	out := *info
	return &out, nil
}

func (r *Registry) uninstall(pluginID string) (*Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.plugins[pluginID]
	if !ok {
		return nil, fmt.Errorf("uninstall %q: %w", pluginID, ErrNotInstalled)
	}
	delete(r.plugins, pluginID)
	if r.db != nil {
		// Uninstall purges whatever the plugin persisted.
		if err := r.db.PluginKVClear(pluginID); err != nil {
			r.logger.Warn("failed to clear plugin storage",
				zap.String("plugin", pluginID), zap.Error(err))
		}
	}

	terminal := *info
	terminal.Status = StatusRemoved
	terminal.ErrorReason = ""
	r.logger.Info("plugin uninstalled", zap.String("plugin", pluginID))
	r.publish("plugin.removed", pluginID)
	return &terminal, nil
}

// update reinstalls an installed plugin at the latest resolvable version.
func (r *Registry) update(ctx context.Context, pluginID string) (*Info, error) {
	r.mu.RLock()
	_, ok := r.plugins[pluginID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("update %q: %w", pluginID, ErrNotInstalled)
	}

	m, err := r.source.Resolve(ctx, pluginID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		info := r.recordFailureLocked(pluginID, err)
		return info, nil
	}

	info, ok := r.plugins[pluginID]
	if !ok {
		// Uninstalled while we were resolving.
		return nil, fmt.Errorf("update %q: %w", pluginID, ErrNotInstalled)
	}
	info.Name = m.Name
	info.Version = m.Version
	info.Status = StatusActive
	info.ErrorReason = ""
	info.Capabilities = m.Capabilities
	r.logger.Info("plugin updated", zap.String("plugin", pluginID), zap.String("version", m.Version))
	r.publish("plugin.updated", pluginID)

	out := *info
	return &out, nil
}

// get is read-only; repeated calls observe identical state.
func (r *Registry) get(pluginID string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[pluginID]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", pluginID, ErrNotInstalled)
	}
	out := *info
	return &out, nil
}

// recordFailureLocked marks a plugin as errored, incrementing its error
// count from the previous state. Caller holds r.mu.
func (r *Registry) recordFailureLocked(pluginID string, cause error) *Info {
	info, ok := r.plugins[pluginID]
	if !ok {
		info = &Info{ID: pluginID, Name: DisplayName(pluginID)}
		r.plugins[pluginID] = info
	}
	info.Status = StatusError
	info.ErrorReason = cause.Error()
	info.ErrorCount++
	r.logger.Warn("plugin operation failed",
		zap.String("plugin", pluginID),
		zap.Int("error_count", info.ErrorCount),
		zap.Error(cause))
	r.publish("plugin.error", pluginID)

	out := *info
	return &out
}

func (r *Registry) publish(channel, pluginID string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(bus.Event{
		Channel:   channel,
		Timestamp: time.Now(),
		Payload:   pluginID,
	})
}
