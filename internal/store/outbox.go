package store

import "time"

// OutboxEntry represents a message queued while the session was offline.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatJID      string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
}

// QueueOutbox adds a message to the offline outbox.
func (db *DB) QueueOutbox(clientMsgID, chatJID, body string) error {
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, chat_jid, body, status, queued_at)
		VALUES (?, ?, ?, 'queued', ?)`,
		clientMsgID, chatJID, body, time.Now().UnixMilli())
	return err
}

// PendingOutbox returns queued entries in FIFO order.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, chat_jid, body, status, error_message
		FROM outbox
		WHERE status = 'queued'
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatJID, &e.Body, &e.Status, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOutboxSent flags an entry as delivered.
func (db *DB) MarkOutboxSent(clientMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sent' WHERE client_msg_id = ?`, clientMsgID)
	return err
}

// MarkOutboxFailed flags an entry as failed with a reason, returning it to
// the back of the queue is deliberately not done: failed sends need user
// action.
func (db *DB) MarkOutboxFailed(clientMsgID, reason string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ? WHERE client_msg_id = ?`, reason, clientMsgID)
	return err
}
