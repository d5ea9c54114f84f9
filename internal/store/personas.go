package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/famousai/pitchlive/internal/persona"
)

// Persona returns the creator-configured persona for a live. ErrNotFound
// when the live has no persona row.
func (s *Store) Persona(ctx context.Context, liveID string) (persona.LivePersona, error) {
	const q = `
		SELECT COALESCE(persona_name, ''), COALESCE(language, ''), COALESCE(tone, ''),
		       COALESCE(niche, ''), COALESCE(system_prompt, '')
		FROM   live_ai_personas
		WHERE  live_id = $1`

	var p persona.LivePersona
	err := s.pool.QueryRow(ctx, q, liveID).
		Scan(&p.Name, &p.Language, &p.Tone, &p.Niche, &p.SystemPrompt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persona.LivePersona{}, ErrNotFound
	}
	if err != nil {
		return persona.LivePersona{}, classify("persona", err)
	}
	return p, nil
}
