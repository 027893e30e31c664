// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package postgres provides the PostgreSQL-backed profile repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/directory"
)

// Pool is the subset of pgxpool.Pool the repository needs. It exists so
// unit tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileRepository implements directory.ProfileRepository using
// PostgreSQL.
type ProfileRepository struct {
	pool Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Upsert creates or replaces the profile for a member.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *directory.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO member_profiles (
			member_id, full_name, student_number, birth_place, birth_date,
			religion, phone, blood_type, home_address, boarding_address,
			education, committees, organizations, trainings, achievements,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (member_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			student_number = EXCLUDED.student_number,
			birth_place = EXCLUDED.birth_place,
			birth_date = EXCLUDED.birth_date,
			religion = EXCLUDED.religion,
			phone = EXCLUDED.phone,
			blood_type = EXCLUDED.blood_type,
			home_address = EXCLUDED.home_address,
			boarding_address = EXCLUDED.boarding_address,
			education = EXCLUDED.education,
			committees = EXCLUDED.committees,
			organizations = EXCLUDED.organizations,
			trainings = EXCLUDED.trainings,
			achievements = EXCLUDED.achievements,
			updated_at = EXCLUDED.updated_at
	`,
		profile.MemberID.String(),
		profile.FullName,
		profile.StudentNumber,
		profile.BirthPlace,
		profile.BirthDate,
		profile.Religion,
		profile.Phone,
		profile.BloodType,
		profile.HomeAddress,
		profile.BoardingAddress,
		profile.Education,
		profile.Committees,
		profile.Organizations,
		profile.Trainings,
		profile.Achievements,
		profile.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_UPSERT_FAILED").
			With("operation", "upsert profile").
			With("member_id", profile.MemberID.String()).
			Wrap(err)
	}
	return nil
}

// GetByMemberID retrieves a profile. A member without a saved profile
// yields an empty Profile.
func (r *ProfileRepository) GetByMemberID(ctx context.Context, memberID ulid.ULID) (*directory.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT member_id, full_name, student_number, birth_place, birth_date,
		       religion, phone, blood_type, home_address, boarding_address,
		       education, committees, organizations, trainings, achievements,
		       updated_at
		FROM member_profiles
		WHERE member_id = $1
	`, memberID.String())

	profile, err := r.scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return &directory.Profile{MemberID: memberID}, nil
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile by member id").
			With("member_id", memberID.String()).
			Wrap(err)
	}
	return profile, nil
}

// List returns all members joined with their profiles, ordered by
// username.
func (r *ProfileRepository) List(ctx context.Context) ([]directory.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.username, m.email, m.role,
		       COALESCE(p.full_name, ''), COALESCE(p.student_number, ''),
		       COALESCE(p.phone, ''), COALESCE(p.updated_at, m.updated_at)
		FROM members m
		LEFT JOIN member_profiles p ON p.member_id = m.id
		ORDER BY m.username
	`)
	if err != nil {
		return nil, oops.Code("MEMBER_LIST_FAILED").
			With("operation", "list members").
			Wrap(err)
	}
	defer rows.Close()

	var entries []directory.Entry
	for rows.Next() {
		var (
			idStr string
			e     directory.Entry
		)
		if err := rows.Scan(&idStr, &e.Username, &e.Email, &e.Role,
			&e.FullName, &e.StudentNumber, &e.Phone, &e.UpdatedAt); err != nil {
			return nil, oops.Code("MEMBER_LIST_SCAN_FAILED").
				With("operation", "scan member entry").
				Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("MEMBER_LIST_INVALID_ID").
				With("id", idStr).
				Wrap(err)
		}
		e.MemberID = id
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("MEMBER_LIST_FAILED").
			With("operation", "iterate member entries").
			Wrap(err)
	}

	return entries, nil
}

// scanProfile scans a single row into a Profile.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *ProfileRepository) scanProfile(row pgx.Row) (*directory.Profile, error) {
	var (
		idStr     string
		p         directory.Profile
		updatedAt time.Time
	)

	err := row.Scan(&idStr, &p.FullName, &p.StudentNumber, &p.BirthPlace, &p.BirthDate,
		&p.Religion, &p.Phone, &p.BloodType, &p.HomeAddress, &p.BoardingAddress,
		&p.Education, &p.Committees, &p.Organizations, &p.Trainings, &p.Achievements,
		&updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PROFILE_SCAN_FAILED").
			With("operation", "scan profile").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PROFILE_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	p.MemberID = id
	p.UpdatedAt = updatedAt

	return &p, nil
}

// Compile-time interface check.
var _ directory.ProfileRepository = (*ProfileRepository)(nil)
