package store

import (
	"database/sql"
	"time"
)

// PluginKVGet returns the value stored under (pluginID, key), or nil if absent.
func (db *DB) PluginKVGet(pluginID, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM plugin_kv WHERE plugin_id = ? AND key = ?`, pluginID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PluginKVSet stores value under (pluginID, key), replacing any previous value.
func (db *DB) PluginKVSet(pluginID, key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO plugin_kv (plugin_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plugin_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		pluginID, key, value, time.Now().UnixMilli())
	return err
}

// PluginKVDelete removes one key. Deleting an absent key is a no-op.
func (db *DB) PluginKVDelete(pluginID, key string) error {
	_, err := db.Exec(`DELETE FROM plugin_kv WHERE plugin_id = ? AND key = ?`, pluginID, key)
	return err
}

// PluginKVKeys lists keys for a plugin with the given prefix, sorted.
func (db *DB) PluginKVKeys(pluginID, prefix string) ([]string, error) {
	rows, err := db.Query(`
		SELECT key FROM plugin_kv
		WHERE plugin_id = ? AND key LIKE ? || '%'
		ORDER BY key`, pluginID, prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PluginKVUsage returns the key count and total value bytes for a plugin.
func (db *DB) PluginKVUsage(pluginID string) (keys int64, bytes int64, err error) {
	err = db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0)
		FROM plugin_kv WHERE plugin_id = ?`, pluginID).Scan(&keys, &bytes)
	return keys, bytes, err
}

// PluginKVClear removes all keys belonging to a plugin.
func (db *DB) PluginKVClear(pluginID string) error {
	_, err := db.Exec(`DELETE FROM plugin_kv WHERE plugin_id = ?`, pluginID)
	return err
}
