package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Escalation ticket states.
const (
	EscalationOpen     = "open"
	EscalationResolved = "resolved"
)

// Escalation is a viewer question handed off for human review.
type Escalation struct {
	ID             uuid.UUID
	LiveID         string
	UserID         string
	Question       string
	Reason         string
	Status         string
	ResolutionNote *string
	ResolvedBy     *string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// SaveEscalation opens a new ticket for moderator review.
func (s *Store) SaveEscalation(ctx context.Context, esc *Escalation) error {
	if esc.ID == uuid.Nil {
		esc.ID = uuid.New()
	}
	if esc.Status == "" {
		esc.Status = EscalationOpen
	}
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO live_ai_escalations (id, live_id, user_id, question, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q, esc.ID, esc.LiveID, esc.UserID, esc.Question, esc.Reason, esc.Status, esc.CreatedAt)
	if err != nil {
		return classify("save escalation", err)
	}
	return nil
}

// Escalations lists tickets in the given state, newest first, up to limit.
func (s *Store) Escalations(ctx context.Context, status string, limit int) ([]Escalation, error) {
	const q = `
		SELECT id, live_id, user_id, question, reason, status,
		       resolution_note, resolved_by, created_at, resolved_at
		FROM   live_ai_escalations
		WHERE  status = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, status, limit)
	if err != nil {
		return nil, classify("list escalations", err)
	}

	escalations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Escalation, error) {
		var e Escalation
		err := row.Scan(
			&e.ID,
			&e.LiveID,
			&e.UserID,
			&e.Question,
			&e.Reason,
			&e.Status,
			&e.ResolutionNote,
			&e.ResolvedBy,
			&e.CreatedAt,
			&e.ResolvedAt,
		)
		return e, err
	})
	if err != nil {
		return nil, classify("list escalations scan", err)
	}
	if escalations == nil {
		escalations = []Escalation{}
	}
	return escalations, nil
}

// UpdateEscalation transitions a ticket. Resolving stamps the resolver and
// timestamp; reopening clears them.
func (s *Store) UpdateEscalation(ctx context.Context, id uuid.UUID, status, resolutionNote, resolvedBy string) error {
	const q = `
		UPDATE live_ai_escalations
		SET    status = $2,
		       resolution_note = NULLIF($3, ''),
		       resolved_by = CASE WHEN $2 = 'resolved' THEN NULLIF($4, '') ELSE NULL END,
		       resolved_at = CASE WHEN $2 = 'resolved' THEN now() ELSE NULL END
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, status, resolutionNote, resolvedBy)
	if err != nil {
		return classify("update escalation", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
