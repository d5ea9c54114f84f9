// Package store provides the PostgreSQL persistence layer for the live AI
// pipeline: chat transcripts, escalation tickets, viewer memory, per-live
// personas and the public live feed.
//
// All operations share a single [pgxpool.Pool]. Tables are created on
// startup via [Migrate]; a partially provisioned database degrades to the
// typed errors [ErrNotProvisioned] and [ErrPermissionDenied] so callers
// can keep answering without persistence.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL-backed persistence layer. All methods are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, verifies connectivity and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
