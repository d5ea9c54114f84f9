package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — live AI pipeline
// ─────────────────────────────────────────────────────────────────────────────

const ddlMessages = `
CREATE TABLE IF NOT EXISTS live_ai_messages (
    id         UUID         PRIMARY KEY,
    live_id    TEXT         NOT NULL,
    user_id    TEXT         NOT NULL,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_live_ai_messages_live_created
    ON live_ai_messages (live_id, created_at);
`

const ddlEscalations = `
CREATE TABLE IF NOT EXISTS live_ai_escalations (
    id              UUID         PRIMARY KEY,
    live_id         TEXT         NOT NULL,
    user_id         TEXT         NOT NULL,
    question        TEXT         NOT NULL,
    reason          TEXT         NOT NULL,
    status          TEXT         NOT NULL DEFAULT 'open',
    resolution_note TEXT,
    resolved_by     TEXT,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    resolved_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_live_ai_escalations_status_created
    ON live_ai_escalations (status, created_at DESC);
`

const ddlViewerMemory = `
CREATE TABLE IF NOT EXISTS live_ai_viewer_memory (
    user_id         TEXT         NOT NULL,
    live_id         TEXT         NOT NULL,
    preferences     TEXT,
    frequent_topics TEXT,
    last_intent     TEXT,
    updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, live_id)
);
`

const ddlPersonas = `
CREATE TABLE IF NOT EXISTS live_ai_personas (
    live_id       TEXT  PRIMARY KEY,
    persona_name  TEXT,
    language      TEXT,
    tone          TEXT,
    niche         TEXT,
    system_prompt TEXT
);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — live feed
// ─────────────────────────────────────────────────────────────────────────────

const ddlLives = `
CREATE TABLE IF NOT EXISTS lives (
    id                   UUID         PRIMARY KEY,
    title                TEXT         NOT NULL,
    status               TEXT         NOT NULL DEFAULT 'offline',
    creator_id           TEXT         NOT NULL,
    creator_verified     BOOLEAN      NOT NULL DEFAULT FALSE,
    creator_is_certified BOOLEAN      NOT NULL DEFAULT FALSE,
    is_certified         BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lives_status_created
    ON lives (status, created_at DESC);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlMessages,
		ddlEscalations,
		ddlViewerMemory,
		ddlPersonas,
		ddlLives,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store migrate: %w", err)
		}
	}
	return nil
}
