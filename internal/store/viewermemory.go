package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/famousai/pitchlive/internal/persona"
)

// FreshViewerMemory returns the viewer's memory for a live when it was
// updated at or after threshold. ErrNotFound when absent or stale.
func (s *Store) FreshViewerMemory(ctx context.Context, userID, liveID string, threshold time.Time) (persona.ViewerMemory, error) {
	const q = `
		SELECT COALESCE(preferences, ''), COALESCE(frequent_topics, ''), COALESCE(last_intent, ''), updated_at
		FROM   live_ai_viewer_memory
		WHERE  user_id = $1 AND live_id = $2 AND updated_at >= $3`

	var m persona.ViewerMemory
	err := s.pool.QueryRow(ctx, q, userID, liveID, threshold).
		Scan(&m.Preferences, &m.FrequentTopics, &m.LastIntent, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persona.ViewerMemory{}, ErrNotFound
	}
	if err != nil {
		return persona.ViewerMemory{}, classify("viewer memory", err)
	}
	return m, nil
}

// UpsertViewerMemory replaces the viewer's memory for a live. Empty
// summary fields are stored as NULL.
func (s *Store) UpsertViewerMemory(ctx context.Context, userID, liveID string, m persona.ViewerMemory) error {
	const q = `
		INSERT INTO live_ai_viewer_memory (user_id, live_id, preferences, frequent_topics, last_intent, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		ON CONFLICT (user_id, live_id) DO UPDATE SET
		    preferences     = EXCLUDED.preferences,
		    frequent_topics = EXCLUDED.frequent_topics,
		    last_intent     = EXCLUDED.last_intent,
		    updated_at      = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, q, userID, liveID, m.Preferences, m.FrequentTopics, m.LastIntent, m.UpdatedAt)
	if err != nil {
		return classify("upsert viewer memory", err)
	}
	return nil
}
