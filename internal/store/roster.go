package store

import (
	"time"

	"github.com/waddle-social/app/internal/chat"
)

// UpsertRosterItem inserts or updates a roster entry, keyed by JID.
func (db *DB) UpsertRosterItem(item *chat.RosterItem) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO roster (jid, name, subscription, groups, presence_show, presence_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			subscription = excluded.subscription,
			groups = excluded.groups,
			presence_show = excluded.presence_show,
			presence_status = excluded.presence_status,
			updated_at = excluded.updated_at`,
		item.JID, item.Name, string(item.Subscription), item.Group,
		string(item.Presence.Show), item.Presence.Status, now)
	return err
}

// UpdatePresence overwrites the volatile presence columns of one contact.
// Unknown JIDs are ignored: presence for someone not on the roster is not
// an error, just noise.
func (db *DB) UpdatePresence(jid string, p chat.Presence) error {
	_, err := db.Exec(`
		UPDATE roster SET presence_show = ?, presence_status = ?, updated_at = ?
		WHERE jid = ?`,
		string(p.Show), p.Status, time.Now().UnixMilli(), jid)
	return err
}

// ListRoster returns all roster entries ordered by JID.
func (db *DB) ListRoster() ([]chat.RosterItem, error) {
	rows, err := db.Query(`
		SELECT jid, name, subscription, groups, presence_show, presence_status
		FROM roster
		ORDER BY jid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []chat.RosterItem
	for rows.Next() {
		var item chat.RosterItem
		var sub, show string
		if err := rows.Scan(&item.JID, &item.Name, &sub, &item.Group, &show, &item.Presence.Status); err != nil {
			return nil, err
		}
		item.Subscription = chat.Subscription(sub)
		item.Presence.Show = chat.PresenceShow(show)
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveRosterItem deletes a contact.
func (db *DB) RemoveRosterItem(jid string) error {
	_, err := db.Exec(`DELETE FROM roster WHERE jid = ?`, jid)
	return err
}
