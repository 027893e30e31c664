// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the access level of an account.
type Role string

// Account roles. New accounts default to RoleMember; administrators are
// promoted out of band (seed command or manual update).
const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// emailRegex is a permissive shape check; deliverability is not this
// package's concern.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Member represents a directory account.
type Member struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMember creates a validated Member with the given credentials.
// The password hash must already be computed; this constructor never
// sees a plaintext password.
func NewMember(username, email, passwordHash string, role Role) (*Member, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_MEMBER").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_MEMBER").With("role", string(role)).Errorf("unknown role")
	}

	now := time.Now()
	return &Member{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsAdmin reports whether the member has the administrator role.
func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Sanitized returns a copy of the member with the password hash
// stripped. Every handle that leaves the auth boundary goes through
// this; the hash never travels further than the hasher.
func (m *Member) Sanitized() *Member {
	c := *m
	c.PasswordHash = ""
	return &c
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail validates the shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is malformed")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemberRepository manages member persistence. Username uniqueness is
// enforced by the store itself at write time; pre-checks in services
// are a fast-path UX hint only.
type MemberRepository interface {
	// Create stores a new member. Returns ErrDuplicateUsername if the
	// username is already taken.
	Create(ctx context.Context, member *Member) error

	// GetByID retrieves a member by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Member, error)

	// GetByUsername retrieves a member by exact username.
	GetByUsername(ctx context.Context, username string) (*Member, error)

	// GetByUsernameAndEmail retrieves a member whose username matches
	// exactly and whose email matches case-insensitively.
	GetByUsernameAndEmail(ctx context.Context, username, email string) (*Member, error)

	// UpdatePasswordHash rewrites only the password hash. Returns
	// ErrNotFound if no such member exists.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateUsername changes the username. Returns ErrDuplicateUsername
	// if the new username is taken.
	UpdateUsername(ctx context.Context, id ulid.ULID, username string) error
}
