package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for a degraded database. Callers that can answer without
// persistence should treat both as non-fatal.
var (
	// ErrNotProvisioned indicates a referenced table does not exist yet.
	ErrNotProvisioned = errors.New("store: table not provisioned")

	// ErrPermissionDenied indicates the database role lacks privileges on
	// a referenced table (including row-level security denials).
	ErrPermissionDenied = errors.New("store: permission denied")
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// PostgreSQL error codes the degradation check recognizes.
const (
	codeUndefinedTable        = "42P01"
	codeInsufficientPrivilege = "42501"
)

// classify wraps database errors that signal a missing or locked-down
// table with the matching sentinel so callers can branch with errors.Is.
// Other errors pass through wrapped with op only.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return fmt.Errorf("store: %s: %w: %s", op, ErrNotProvisioned, pgErr.TableName)
		case codeInsufficientPrivilege:
			return fmt.Errorf("store: %s: %w", op, ErrPermissionDenied)
		}
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

// IsDegraded reports whether err only reflects a partially provisioned
// database rather than a real failure.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrNotProvisioned) || errors.Is(err, ErrPermissionDenied)
}
