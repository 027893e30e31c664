// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package postgres provides a PostgreSQL-backed session store so
// sessions survive restarts and can be shared by multiple processes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/session"
)

// Pool is the subset of pgxpool.Pool the store needs. It exists so unit
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements session.Store using PostgreSQL. The flash queue is a
// JSONB column; DrainFlash clears it and returns the previous value in
// a single statement so delivery stays exactly-once under races.
type Store struct {
	pool Pool
}

// NewStore creates a new Store.
func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

// Create stores a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	flashJSON, err := marshalFlash(sess.Flash)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, member_id, token_hash, flash, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		sess.ID.String(),
		sess.MemberID.String(),
		sess.TokenHash,
		flashJSON,
		sess.ExpiresAt,
		sess.CreatedAt,
		sess.LastSeenAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("member_id", sess.MemberID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a live session.
func (s *Store) GetByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, member_id, token_hash, flash, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	sess, err := s.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	if sess.IsExpired() {
		return nil, session.ErrExpired
	}
	return sess, nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, tokenHash string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// UpdateLastSeen updates the LastSeenAt timestamp.
func (s *Store) UpdateLastSeen(ctx context.Context, tokenHash string, lastSeen time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE token_hash = $1
	`, tokenHash, lastSeen)
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "update last seen").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// PushFlash appends a flash notice to the session's JSONB queue.
func (s *Store) PushFlash(ctx context.Context, tokenHash string, flash session.Flash) error {
	flashJSON, err := json.Marshal(flash)
	if err != nil {
		return oops.Code("SESSION_FLASH_ENCODE_FAILED").
			With("operation", "marshal flash").
			Wrap(err)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE sessions SET flash = flash || $2::jsonb WHERE token_hash = $1
	`, tokenHash, flashJSON)
	if err != nil {
		return oops.Code("SESSION_FLASH_PUSH_FAILED").
			With("operation", "push flash").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// DrainFlash clears the queue and returns its previous contents. The
// row lock taken by the inner SELECT serializes racing drains; only one
// of them sees the notices.
func (s *Store) DrainFlash(ctx context.Context, tokenHash string) ([]session.Flash, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions s SET flash = '[]'::jsonb
		FROM (
			SELECT token_hash, flash FROM sessions WHERE token_hash = $1 FOR UPDATE
		) prev
		WHERE s.token_hash = prev.token_hash
		RETURNING prev.flash
	`, tokenHash)

	var flashJSON []byte
	if err := row.Scan(&flashJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, oops.Code("SESSION_FLASH_DRAIN_FAILED").
			With("operation", "drain flash").
			Wrap(err)
	}

	var flashes []session.Flash
	if len(flashJSON) > 0 {
		if err := json.Unmarshal(flashJSON, &flashes); err != nil {
			return nil, oops.Code("SESSION_FLASH_DECODE_FAILED").
				With("operation", "unmarshal flash").
				Wrap(err)
		}
	}
	return flashes, nil
}

// DeleteExpired removes all expired sessions.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// CountActive returns the number of unexpired sessions.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	var live int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE expires_at >= NOW()
	`).Scan(&live)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").
			With("operation", "count active sessions").
			Wrap(err)
	}
	return live, nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func (s *Store) scanSession(row pgx.Row) (*session.Session, error) {
	var (
		idStr       string
		memberIDStr string
		tokenHash   string
		flashJSON   []byte
		expiresAt   time.Time
		createdAt   time.Time
		lastSeenAt  time.Time
	)

	err := row.Scan(&idStr, &memberIDStr, &tokenHash, &flashJSON, &expiresAt, &createdAt, &lastSeenAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	memberID, err := ulid.Parse(memberIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_MEMBER_ID").
			With("member_id", memberIDStr).
			Wrap(err)
	}

	var flashes []session.Flash
	if len(flashJSON) > 0 {
		if err := json.Unmarshal(flashJSON, &flashes); err != nil {
			return nil, oops.Code("SESSION_FLASH_DECODE_FAILED").
				With("operation", "unmarshal flash").
				Wrap(err)
		}
	}

	return &session.Session{
		ID:         id,
		MemberID:   memberID,
		TokenHash:  tokenHash,
		Flash:      flashes,
		ExpiresAt:  expiresAt,
		CreatedAt:  createdAt,
		LastSeenAt: lastSeenAt,
	}, nil
}

func marshalFlash(flashes []session.Flash) ([]byte, error) {
	if flashes == nil {
		flashes = []session.Flash{}
	}
	b, err := json.Marshal(flashes)
	if err != nil {
		return nil, oops.Code("SESSION_FLASH_ENCODE_FAILED").
			With("operation", "marshal flash queue").
			Wrap(err)
	}
	return b, nil
}

// Compile-time interface check.
var _ session.Store = (*Store)(nil)
