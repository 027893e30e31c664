// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package mocks provides testify-based mocks for the auth interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/memberdir/memberdir/internal/auth"
)

// MockMemberRepository is a mock implementation of auth.MemberRepository.
type MockMemberRepository struct {
	mock.Mock
}

// NewMockMemberRepository creates a mock with expectations asserted at
// test cleanup.
func NewMockMemberRepository(t *testing.T) *MockMemberRepository {
	m := &MockMemberRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMemberRepository) Create(ctx context.Context, member *auth.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Member, error) {
	args := m.Called(ctx, id)
	if member, ok := args.Get(0).(*auth.Member); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberRepository) GetByUsername(ctx context.Context, username string) (*auth.Member, error) {
	args := m.Called(ctx, username)
	if member, ok := args.Get(0).(*auth.Member); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberRepository) GetByUsernameAndEmail(ctx context.Context, username, email string) (*auth.Member, error) {
	args := m.Called(ctx, username, email)
	if member, ok := args.Get(0).(*auth.Member); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMemberRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockMemberRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string) error {
	args := m.Called(ctx, id, username)
	return args.Error(0)
}

var _ auth.MemberRepository = (*MockMemberRepository)(nil)

// MockPasswordHasher is a mock implementation of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock with expectations asserted at
// test cleanup.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsRehash(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)
