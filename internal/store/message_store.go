package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parley-im/parley/internal/domain"
)

// MessageStore persists conversation messages. Message ids are the primary
// key, so replays of the same batch are harmless: already-present rows are
// skipped and reported as acknowledged, never as an error.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// SaveOutcome reports what a batch write actually did.
type SaveOutcome struct {
	// Saved counts rows newly written by this call.
	Saved int

	// AckedIDs lists every id now known durable, including duplicates that
	// were already present before the call.
	AckedIDs []string
}

// SaveBatch writes messages idempotently inside one transaction.
func (s *MessageStore) SaveBatch(conversationID string, msgs []domain.Message) (*SaveOutcome, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save batch: %w", err)
	}
	defer tx.Rollback()

	out := &SaveOutcome{}
	for _, m := range msgs {
		parts, err := json.Marshal(m.Parts)
		if err != nil {
			return nil, fmt.Errorf("marshaling parts for %s: %w", m.ID, err)
		}
		meta, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata for %s: %w", m.ID, err)
		}

		createdAt := m.Metadata.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		res, err := tx.Exec(
			`INSERT INTO messages (id, conversation_id, role, parts, metadata, original_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			m.ID, conversationID, string(m.Role), string(parts), string(meta),
			m.Metadata.OriginalMessageID, createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting message %s: %w", m.ID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking insert of %s: %w", m.ID, err)
		}
		out.Saved += int(n)
		out.AckedIDs = append(out.AckedIDs, m.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save batch: %w", err)
	}

	if out.Saved < len(msgs) {
		s.db.log.Debug().
			Int("duplicates", len(msgs)-out.Saved).
			Str("conversation", conversationID).
			Msg("skipped already-saved messages")
	}
	return out, nil
}

// List returns a conversation's messages in creation order.
func (s *MessageStore) List(conversationID string) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, role, parts, metadata FROM messages
		 WHERE conversation_id = ? ORDER BY created_at, id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByOriginalID resolves a message by the client-local id it carried
// before a durable one was minted.
func (s *MessageStore) GetByOriginalID(originalID string) (*domain.Message, error) {
	row := s.db.sql.QueryRow(
		`SELECT id, role, parts, metadata FROM messages WHERE original_id = ?`, originalID,
	)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var m domain.Message
	var role, parts, meta string
	if err := row.Scan(&m.ID, &role, &parts, &meta); err != nil {
		return domain.Message{}, err
	}
	m.Role = domain.Role(role)
	if err := json.Unmarshal([]byte(parts), &m.Parts); err != nil {
		return domain.Message{}, fmt.Errorf("decoding parts for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
		return domain.Message{}, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
	}
	return m, nil
}
