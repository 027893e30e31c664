// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberdir/memberdir/internal/auth"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock pool")
	t.Cleanup(mock.Close)
	return mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
}

func testMember(t *testing.T) *auth.Member {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.Member{
		ID:           ulid.Make(),
		Username:     "budi",
		Email:        "budi@example.com",
		PasswordHash: "phc-hash",
		Role:         auth.RoleMember,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemberRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, m *auth.Member)
		wantErr   error
	}{
		{
			name: "success",
			setupMock: func(mock pgxmock.PgxPoolIface, m *auth.Member) {
				mock.ExpectExec(`INSERT INTO members`).
					WithArgs(m.ID.String(), m.Username, m.Email, m.PasswordHash,
						string(m.Role), m.CreatedAt, m.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate username",
			setupMock: func(mock pgxmock.PgxPoolIface, m *auth.Member) {
				mock.ExpectExec(`INSERT INTO members`).
					WithArgs(m.ID.String(), m.Username, m.Email, m.PasswordHash,
						string(m.Role), m.CreatedAt, m.UpdatedAt).
					WillReturnError(uniqueViolation())
			},
			wantErr: auth.ErrDuplicateUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			member := testMember(t)
			tt.setupMock(mock, member)

			repo := NewMemberRepository(mock)
			err := repo.Create(context.Background(), member)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMemberRepository_GetByUsername(t *testing.T) {
	member := testMember(t)

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(member.ID.String(), member.Username, member.Email, member.PasswordHash,
				string(member.Role), member.CreatedAt, member.UpdatedAt)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
			WithArgs(member.Username).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		got, err := repo.GetByUsername(context.Background(), member.Username)
		require.NoError(t, err)
		assert.Equal(t, member.ID, got.ID)
		assert.Equal(t, member.Email, got.Email)
		assert.Equal(t, member.Role, got.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}))

		repo := NewMemberRepository(mock)
		_, err := repo.GetByUsername(context.Background(), "ghost")
		require.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed stored id", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow("not-a-ulid", member.Username, member.Email, member.PasswordHash,
				string(member.Role), member.CreatedAt, member.UpdatedAt)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
			WithArgs(member.Username).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		_, err := repo.GetByUsername(context.Background(), member.Username)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestMemberRepository_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	id := ulid.Make()
	mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}))

	repo := NewMemberRepository(mock)
	_, err := repo.GetByID(context.Background(), id)
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMemberRepository_GetByUsernameAndEmail(t *testing.T) {
	member := testMember(t)

	t.Run("match", func(t *testing.T) {
		mock := newMockPool(t)
		rows := pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(member.ID.String(), member.Username, member.Email, member.PasswordHash,
				string(member.Role), member.CreatedAt, member.UpdatedAt)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
			WithArgs(member.Username, member.Email).
			WillReturnRows(rows)

		repo := NewMemberRepository(mock)
		got, err := repo.GetByUsernameAndEmail(context.Background(), member.Username, member.Email)
		require.NoError(t, err)
		assert.Equal(t, member.ID, got.ID)
	})

	t.Run("no match", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, role, created_at, updated_at`).
			WithArgs(member.Username, "other@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}))

		repo := NewMemberRepository(mock)
		_, err := repo.GetByUsernameAndEmail(context.Background(), member.Username, "other@example.com")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestMemberRepository_UpdatePasswordHash(t *testing.T) {
	id := ulid.Make()

	t.Run("success", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE members SET password_hash`).
			WithArgs(id.String(), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewMemberRepository(mock)
		require.NoError(t, repo.UpdatePasswordHash(context.Background(), id, "newhash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing member", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE members SET password_hash`).
			WithArgs(id.String(), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewMemberRepository(mock)
		err := repo.UpdatePasswordHash(context.Background(), id, "newhash")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestMemberRepository_UpdateUsername(t *testing.T) {
	id := ulid.Make()

	t.Run("success", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE members SET username`).
			WithArgs(id.String(), "newname", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewMemberRepository(mock)
		require.NoError(t, repo.UpdateUsername(context.Background(), id, "newname"))
	})

	t.Run("username taken", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE members SET username`).
			WithArgs(id.String(), "taken", pgxmock.AnyArg()).
			WillReturnError(uniqueViolation())

		repo := NewMemberRepository(mock)
		err := repo.UpdateUsername(context.Background(), id, "taken")
		require.ErrorIs(t, err, auth.ErrDuplicateUsername)
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE members SET username`).
			WithArgs(id.String(), "newname", pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		repo := NewMemberRepository(mock)
		err := repo.UpdateUsername(context.Background(), id, "newname")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
	})
}
