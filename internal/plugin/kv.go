package plugin

import (
	"fmt"

	"github.com/waddle-social/app/internal/store"
)

// Quota bounds a plugin's KV usage.
type Quota struct {
	MaxKeys       int64
	MaxValueBytes int64
}

// DefaultQuota returns the standard per-plugin quota.
func DefaultQuota() Quota {
	return Quota{MaxKeys: 10_000, MaxValueBytes: 1 << 20}
}

// KV is a per-plugin key/value store. All keys live in the plugin's own
// namespace; one plugin can never read or clobber another's data.
type KV struct {
	pluginID string
	db       *store.DB
	quota    Quota
}

// NewKV creates the KV store for one plugin.
func NewKV(pluginID string, db *store.DB, quota Quota) *KV {
	return &KV{pluginID: pluginID, db: db, quota: quota}
}

// Get returns the value for key, or nil if absent.
func (kv *KV) Get(key string) ([]byte, error) {
	return kv.db.PluginKVGet(kv.pluginID, key)
}

// Set stores value under key, enforcing the quota.
func (kv *KV) Set(key string, value []byte) error {
	if int64(len(value)) > kv.quota.MaxValueBytes {
		return fmt.Errorf("value too large: %d bytes exceeds limit of %d", len(value), kv.quota.MaxValueBytes)
	}
	existing, err := kv.db.PluginKVGet(kv.pluginID, key)
	if err != nil {
		return err
	}
	if existing == nil {
		count, _, err := kv.db.PluginKVUsage(kv.pluginID)
		if err != nil {
			return err
		}
		if count >= kv.quota.MaxKeys {
			return fmt.Errorf("quota exceeded: plugin %q has %d keys, limit is %d", kv.pluginID, count, kv.quota.MaxKeys)
		}
	}
	return kv.db.PluginKVSet(kv.pluginID, key, value)
}

// Delete removes a key. Deleting an absent key is a no-op.
func (kv *KV) Delete(key string) error {
	return kv.db.PluginKVDelete(kv.pluginID, key)
}

// Keys lists the plugin's keys with the given prefix.
func (kv *KV) Keys(prefix string) ([]string, error) {
	return kv.db.PluginKVKeys(kv.pluginID, prefix)
}

// Usage returns the current key count and total value bytes.
func (kv *KV) Usage() (keys int64, bytes int64, err error) {
	return kv.db.PluginKVUsage(kv.pluginID)
}

// Clear removes everything the plugin has stored.
func (kv *KV) Clear() error {
	return kv.db.PluginKVClear(kv.pluginID)
}
