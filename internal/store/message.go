package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/waddle-social/app/internal/chat"
)

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id).
// chatJID is the conversation the message belongs to (peer or room JID).
func (db *DB) UpsertMessage(chatJID string, m *chat.Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, chat_jid, from_jid, to_jid, body, message_type, thread, read, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			body = excluded.body,
			read = excluded.read`,
		m.ID, chatJID, m.From, m.To, m.Body, string(m.Type), nullable(m.Thread), m.Read, m.SentAt.UnixMilli(), now)
	return err
}

// ListMessages returns messages for a chat using keyset pagination, newest
// first. before is an optional message ID cursor: only messages older than
// it are returned. An unknown cursor is an error.
func (db *DB) ListMessages(chatJID string, limit int, before string) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if before == "" {
		rows, err = db.Query(`
			SELECT msg_id, from_jid, to_jid, body, message_type, thread, read, timestamp
			FROM messages
			WHERE chat_jid = ?
			ORDER BY timestamp DESC, rowid DESC
			LIMIT ?`, chatJID, limit)
	} else {
		// Tie-break on rowid so messages sharing the cursor's
		// millisecond are not skipped across pages.
		var ts, rid int64
		err = db.QueryRow(`SELECT timestamp, rowid FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, before).Scan(&ts, &rid)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("unknown history cursor %q", before)
		}
		if err != nil {
			return nil, err
		}
		rows, err = db.Query(`
			SELECT msg_id, from_jid, to_jid, body, message_type, thread, read, timestamp
			FROM messages
			WHERE chat_jid = ? AND (timestamp < ? OR (timestamp = ? AND rowid < ?))
			ORDER BY timestamp DESC, rowid DESC
			LIMIT ?`, chatJID, ts, ts, rid, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var msgType string
		var thread sql.NullString
		var ts int64
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Body, &msgType, &thread, &m.Read, &ts); err != nil {
			return nil, err
		}
		m.Type = chat.MessageType(msgType)
		m.Thread = thread.String
		m.SentAt = time.UnixMilli(ts).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead flags a stored message as read.
func (db *DB) MarkRead(chatJID, msgID string) error {
	_, err := db.Exec(`UPDATE messages SET read = 1 WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
