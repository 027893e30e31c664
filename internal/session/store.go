// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package session

import (
	"context"
	"errors"
	"time"
)

// Store errors. Implementations return these sentinels (possibly
// wrapped) so callers can match with errors.Is.
var (
	// ErrNotFound is returned when no session exists for a token hash.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when the session exists but its TTL has
	// elapsed.
	ErrExpired = errors.New("session expired")
)

// Store persists sessions keyed by token hash. Concurrent operations on
// different token hashes must not interfere; DrainFlash must be an
// atomic read-and-clear so a notice is delivered exactly once even when
// two drains race.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// GetByTokenHash retrieves a live session. Returns ErrNotFound if
	// absent and ErrExpired if past its TTL.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes a session. Deleting an absent session returns
	// ErrNotFound; callers that need idempotency ignore it.
	Delete(ctx context.Context, tokenHash string) error

	// UpdateLastSeen updates the LastSeenAt timestamp.
	UpdateLastSeen(ctx context.Context, tokenHash string, lastSeen time.Time) error

	// PushFlash appends a flash notice to the session's queue.
	PushFlash(ctx context.Context, tokenHash string, flash Flash) error

	// DrainFlash atomically returns and empties the flash queue in FIFO
	// order. A drained notice is never returned again.
	DrainFlash(ctx context.Context, tokenHash string) ([]Flash, error)

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)

	// CountActive returns the number of unexpired sessions.
	CountActive(ctx context.Context) (int64, error)
}
