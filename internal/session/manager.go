// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
)

// Manager owns the session lifecycle. It is the only component that
// sees plaintext tokens; everything below it works on token hashes.
type Manager struct {
	store   Store
	members auth.MemberRepository
	logger  *slog.Logger
}

// NewManager creates a new Manager.
func NewManager(store Store, members auth.MemberRepository, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_DEPS").Errorf("session store is required")
	}
	if members == nil {
		return nil, oops.Code("SESSION_INVALID_DEPS").Errorf("members repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, members: members, logger: logger}, nil
}

// Start issues a session for an authenticated member and returns the
// plaintext token for the transport layer. It is the sole point at
// which a session becomes visible and must only be called after
// credential verification succeeded.
func (m *Manager) Start(ctx context.Context, member *auth.Member) (string, *Session, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return "", nil, oops.Code("SESSION_START_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	sess, err := New(member.ID, tokenHash, time.Now().Add(TTL))
	if err != nil {
		return "", nil, oops.Code("SESSION_START_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return "", nil, oops.Code("SESSION_STORE_UNAVAILABLE").
			With("operation", "persist session").
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}

	m.logger.InfoContext(ctx, "session started",
		"session_id", sess.ID.String(),
		"member_id", member.ID.String(),
	)

	return token, sess, nil
}

// Resolve maps a token to the member it belongs to. The member is
// re-fetched from the credential store on every call so a role change
// takes effect on the next request; cached copies are never trusted.
// Returns (nil, nil, nil) for absent or expired sessions — the caller
// treats the request as unauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (*auth.Member, *Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	sess, err := m.store.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
			return nil, nil, nil
		}
		return nil, nil, oops.Code("SESSION_STORE_UNAVAILABLE").
			With("operation", "get session by token hash").
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}

	member, err := m.members.GetByID(ctx, sess.MemberID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			// Account deleted out from under the session; drop it.
			_ = m.store.Delete(ctx, sess.TokenHash) //nolint:errcheck // Best effort
			return nil, nil, nil
		}
		return nil, nil, oops.Code("SESSION_STORE_UNAVAILABLE").
			With("operation", "get member by id").
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}

	// Best effort; resolution succeeds regardless.
	_ = m.store.UpdateLastSeen(ctx, sess.TokenHash, time.Now()) //nolint:errcheck

	return member.Sanitized(), sess, nil
}

// Destroy removes the session unconditionally. Destroying an
// already-gone session is not an error; once destroyed a token is never
// usable again.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	err := m.store.Delete(ctx, HashToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// PushFlash queues a one-shot notice on the session.
func (m *Manager) PushFlash(ctx context.Context, token string, message string, severity Severity) error {
	err := m.store.PushFlash(ctx, HashToken(token), Flash{Message: message, Severity: severity})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_FLASH_FAILED").
			With("operation", "push flash").
			Wrap(err)
	}
	return nil
}

// DrainFlash returns and clears the session's flash queue. A notice is
// delivered exactly once, even under a refresh race.
func (m *Manager) DrainFlash(ctx context.Context, token string) ([]Flash, error) {
	flashes, err := m.store.DrainFlash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_FLASH_FAILED").
			With("operation", "drain flash").
			Wrap(err)
	}
	return flashes, nil
}
