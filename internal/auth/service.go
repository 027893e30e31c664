// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Service provides the credential flows: login, signup, and
// forgot-password. It is state-free; all state lives in the repository.
type Service struct {
	members MemberRepository
	hasher  PasswordHasher
	logger  *slog.Logger
}

// NewService creates a new Service.
func NewService(members MemberRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(members, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(members MemberRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if members == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("members repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("logger is required")
	}
	return &Service{members: members, hasher: hasher, logger: logger}, nil
}

// dummyPasswordHash is used when a member doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Authenticate verifies a username/password pair against the credential
// store. Unknown usernames and wrong passwords both yield
// ErrInvalidCredentials; a dummy hash is verified in the unknown case
// to keep response time constant. The returned member handle has the
// password hash stripped.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Member, error) {
	member, lookupErr := s.members.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	memberExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get member by username").
				Wrap(errors.Join(ErrStoreUnavailable, lookupErr))
		}
	} else {
		targetHash = member.PasswordHash
		memberExists = true
	}

	// Always verify; a malformed stored hash counts as a mismatch.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		valid = false
	}

	if !memberExists || !valid {
		s.logger.InfoContext(ctx, "login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	// Transparent work-factor upgrade on successful login.
	if s.hasher.NeedsRehash(member.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			// Best effort; login succeeds regardless.
			_ = s.members.UpdatePasswordHash(ctx, member.ID, newHash) //nolint:errcheck
		}
	}

	return member.Sanitized(), nil
}

// SignupInput carries the signup form fields.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

// Signup validates the input and creates a new member with the standard
// role. Validation short-circuits on the first violation in form order:
// username, email, password, confirmation. The username pre-check is a
// UX fast path; the store's unique constraint is the actual guard, so a
// concurrent duplicate still surfaces as ErrDuplicateUsername.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Member, error) {
	if in.Username == "" {
		return nil, &MissingFieldError{Field: "username"}
	}
	if in.Email == "" {
		return nil, &MissingFieldError{Field: "email"}
	}
	if in.Password == "" {
		return nil, &MissingFieldError{Field: "password"}
	}
	if in.Confirm == "" {
		return nil, &MissingFieldError{Field: "password confirmation"}
	}
	if in.Password != in.Confirm {
		return nil, ErrPasswordMismatch
	}

	if _, err := s.members.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "check username").
			Wrap(errors.Join(ErrStoreUnavailable, err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	member, err := NewMember(in.Username, NormalizeEmail(in.Email), hash, RoleMember)
	if err != nil {
		return nil, err
	}

	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, ErrDuplicateUsername
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create member").
			Wrap(errors.Join(ErrStoreUnavailable, err))
	}

	s.logger.InfoContext(ctx, "member created", "username", member.Username, "member_id", member.ID.String())
	return member.Sanitized(), nil
}

// ResetPassword rewrites the password hash for the account matching
// both username and email. Any mismatch fails with ErrUnknownAccount
// without revealing which part was wrong.
func (s *Service) ResetPassword(ctx context.Context, username, email, newPassword string) error {
	if username == "" {
		return &MissingFieldError{Field: "username"}
	}
	if email == "" {
		return &MissingFieldError{Field: "email"}
	}
	if newPassword == "" {
		return &MissingFieldError{Field: "password"}
	}

	member, err := s.members.GetByUsernameAndEmail(ctx, username, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnknownAccount
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "get member by username and email").
			Wrap(errors.Join(ErrStoreUnavailable, err))
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.members.UpdatePasswordHash(ctx, member.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnknownAccount
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password hash").
			Wrap(errors.Join(ErrStoreUnavailable, err))
	}

	s.logger.InfoContext(ctx, "password reset", "member_id", member.ID.String())
	return nil
}
