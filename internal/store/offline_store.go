package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parley-im/parley/internal/domain"
)

// OfflineStore queues peer messages for users with no live connection. Drain
// removes and returns a user's queue atomically so a message is handed out
// at most once.
type OfflineStore struct {
	db *DB
}

// NewOfflineStore creates an offline queue using the given database.
func NewOfflineStore(db *DB) *OfflineStore {
	return &OfflineStore{db: db}
}

// Enqueue stores one peer message for later delivery.
func (s *OfflineStore) Enqueue(receiverID string, item domain.OfflineItem) error {
	var attachment any
	if item.FileAttachment != nil {
		data, err := json.Marshal(item.FileAttachment)
		if err != nil {
			return fmt.Errorf("marshaling attachment: %w", err)
		}
		attachment = string(data)
	}

	createdAt := time.Now().UTC()
	if item.CreatedAt != nil {
		createdAt = *item.CreatedAt
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO offline_messages (receiver_id, session_id, sender_id, sender_name, body, attachment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		receiverID, item.SessionID, item.SenderID, item.SenderNickname,
		item.Body, attachment, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("enqueueing offline message: %w", err)
	}
	return nil
}

// Drain removes and returns all queued messages for a user, oldest first.
func (s *OfflineStore) Drain(receiverID string) ([]domain.OfflineItem, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin drain: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT session_id, sender_id, sender_name, body, attachment, created_at
		 FROM offline_messages WHERE receiver_id = ? ORDER BY id`, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading offline queue: %w", err)
	}

	var items []domain.OfflineItem
	for rows.Next() {
		var item domain.OfflineItem
		var attachment *string
		var createdAt string
		if err := rows.Scan(&item.SessionID, &item.SenderID, &item.SenderNickname, &item.Body, &attachment, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning offline message: %w", err)
		}
		if attachment != nil {
			var a domain.Attachment
			if err := json.Unmarshal([]byte(*attachment), &a); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decoding attachment: %w", err)
			}
			item.FileAttachment = &a
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			item.CreatedAt = &ts
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM offline_messages WHERE receiver_id = ?`, receiverID); err != nil {
		return nil, fmt.Errorf("clearing offline queue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drain: %w", err)
	}

	if len(items) > 0 {
		s.db.log.Debug().Int("messages", len(items)).Str("receiver", receiverID).Msg("offline queue drained")
	}
	return items, nil
}

// Pending counts queued messages for a user.
func (s *OfflineStore) Pending(receiverID string) (int, error) {
	var n int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM offline_messages WHERE receiver_id = ?`, receiverID,
	).Scan(&n)
	return n, err
}
