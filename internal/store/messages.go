package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message roles stored in live_ai_messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry of a live AI conversation.
type Message struct {
	ID        uuid.UUID
	LiveID    string
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// SaveMessage appends a transcript entry. The id and timestamp are
// assigned here so the caller can echo them without a round trip.
func (s *Store) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO live_ai_messages (id, live_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, q, msg.ID, msg.LiveID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return classify("save message", err)
	}
	return nil
}

// History returns up to limit transcript entries for a live, oldest
// first.
func (s *Store) History(ctx context.Context, liveID string, limit int) ([]Message, error) {
	const q = `
		SELECT id, live_id, user_id, role, content, created_at
		FROM   live_ai_messages
		WHERE  live_id = $1
		ORDER  BY created_at
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, liveID, limit)
	if err != nil {
		return nil, classify("history", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.LiveID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, classify("history scan", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
