package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Live is one entry of the public live feed.
type Live struct {
	ID                 uuid.UUID
	Title              string
	Status             string
	CreatorID          string
	CreatorVerified    bool
	CreatorIsCertified bool
	IsCertified        bool
	CreatedAt          time.Time
}

// FeedOptions filters the live feed query.
type FeedOptions struct {
	// Offset skips rows for pagination.
	Offset int

	// Limit bounds the page size.
	Limit int

	// LiveOnly restricts the feed to streams currently on air.
	LiveOnly bool
}

// Feed lists lives, newest first.
func (s *Store) Feed(ctx context.Context, opts FeedOptions) ([]Live, error) {
	q := `
		SELECT id, title, status, creator_id, creator_verified, creator_is_certified, is_certified, created_at
		FROM   lives`
	args := []any{}
	if opts.LiveOnly {
		q += `
		WHERE  status = 'live'`
	}
	args = append(args, opts.Limit, opts.Offset)
	q += `
		ORDER  BY created_at DESC
		LIMIT  $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify("feed", err)
	}

	lives, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Live, error) {
		var l Live
		err := row.Scan(
			&l.ID,
			&l.Title,
			&l.Status,
			&l.CreatorID,
			&l.CreatorVerified,
			&l.CreatorIsCertified,
			&l.IsCertified,
			&l.CreatedAt,
		)
		return l, err
	})
	if err != nil {
		return nil, classify("feed scan", err)
	}
	if lives == nil {
		lives = []Live{}
	}
	return lives, nil
}
