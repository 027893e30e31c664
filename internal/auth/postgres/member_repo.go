// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package postgres provides PostgreSQL-backed repositories for the auth
// domain.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
)

// Pool is the subset of pgxpool.Pool the repositories need. It exists
// so unit tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MemberRepository implements auth.MemberRepository using PostgreSQL.
// The members table carries a unique index on username; concurrent
// duplicate inserts surface as auth.ErrDuplicateUsername regardless of
// any pre-check the caller performed.
type MemberRepository struct {
	pool Pool
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(pool Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// Create stores a new member.
func (r *MemberRepository) Create(ctx context.Context, member *auth.Member) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO members (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		member.ID.String(),
		member.Username,
		member.Email,
		member.PasswordHash,
		string(member.Role),
		member.CreatedAt,
		member.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("MEMBER_DUPLICATE_USERNAME").
				With("username", member.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("MEMBER_CREATE_FAILED").
			With("operation", "insert member").
			With("username", member.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM members
		WHERE id = $1
	`, id.String())

	member, err := r.scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MEMBER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("MEMBER_GET_BY_ID_FAILED").
			With("operation", "get member by id").
			With("id", id.String()).
			Wrap(err)
	}
	return member, nil
}

// GetByUsername retrieves a member by exact username.
func (r *MemberRepository) GetByUsername(ctx context.Context, username string) (*auth.Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM members
		WHERE username = $1
	`, username)

	member, err := r.scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MEMBER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("MEMBER_GET_BY_USERNAME_FAILED").
			With("operation", "get member by username").
			With("username", username).
			Wrap(err)
	}
	return member, nil
}

// GetByUsernameAndEmail retrieves a member whose username matches
// exactly and whose email matches case-insensitively.
func (r *MemberRepository) GetByUsernameAndEmail(ctx context.Context, username, email string) (*auth.Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM members
		WHERE username = $1 AND LOWER(email) = LOWER($2)
	`, username, email)

	member, err := r.scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MEMBER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("MEMBER_GET_BY_USERNAME_EMAIL_FAILED").
			With("operation", "get member by username and email").
			With("username", username).
			Wrap(err)
	}
	return member, nil
}

// UpdatePasswordHash rewrites only the password hash for a member.
func (r *MemberRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE members SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("MEMBER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("MEMBER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateUsername changes the username for a member.
func (r *MemberRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE members SET username = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), username, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("MEMBER_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("MEMBER_UPDATE_USERNAME_FAILED").
			With("operation", "update username").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("MEMBER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanMember scans a single row into a Member.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *MemberRepository) scanMember(row pgx.Row) (*auth.Member, error) {
	var (
		idStr        string
		username     string
		email        string
		passwordHash string
		role         string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &username, &email, &passwordHash, &role, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("MEMBER_SCAN_FAILED").
			With("operation", "scan member").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("MEMBER_INVALID_ID").
			With("operation", "parse member id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Member{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         auth.Role(role),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.MemberRepository = (*MemberRepository)(nil)
