// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package session provides opaque-token session lifecycle management.
//
// A session associates an unguessable token with exactly one member.
// Only the SHA-256 hash of the token is ever stored; the plaintext
// travels to the client as a cookie and exists server-side only for
// the duration of a request. Sessions expire a fixed TTL after
// creation and carry a FIFO queue of one-shot flash notices drained by
// the next page render.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration. The TTL matches the original deployment
// (24 hours, fixed from creation; expiry does not slide).
const (
	TokenBytes = 32             // 32 bytes = 64 hex chars
	TTL        = 24 * time.Hour // fixed lifetime from CreatedAt
)

// Severity tags a flash notice for rendering.
type Severity string

// Flash severities.
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Flash is a one-shot user-facing notice delivered to the next rendered
// page and then discarded.
type Flash struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Session is a time-bounded association between a token and a member.
type Session struct {
	ID         ulid.ULID
	MemberID   ulid.ULID
	TokenHash  string
	Flash      []Flash
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// New creates a validated Session for the given member.
func New(memberID ulid.ULID, tokenHash string, expiresAt time.Time) (*Session, error) {
	if memberID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_MEMBER").Errorf("member ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:         ulid.Make(),
		MemberID:   memberID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the given
// time. Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken computes the SHA-256 hash of a session token. This is what
// gets stored; a leaked store never yields usable tokens.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks if the plaintext token matches the stored hash
// using constant-time comparison.
func VerifyToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}
