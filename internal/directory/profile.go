// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package directory provides the member-directory features that sit on
// top of the auth core: profile management and the dashboard listing.
package directory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Profile holds the free-form membership fields for one member. All
// fields are optional; a freshly signed-up member has an empty profile.
type Profile struct {
	MemberID        ulid.ULID
	FullName        string
	StudentNumber   string
	BirthPlace      string
	BirthDate       string
	Religion        string
	Phone           string
	BloodType       string
	HomeAddress     string
	BoardingAddress string
	Education       string
	Committees      string
	Organizations   string
	Trainings       string
	Achievements    string
	UpdatedAt       time.Time
}

// Entry is one row of the dashboard member listing: account identity
// joined with the headline profile fields.
type Entry struct {
	MemberID      ulid.ULID
	Username      string
	Email         string
	Role          string
	FullName      string
	StudentNumber string
	Phone         string
	UpdatedAt     time.Time
}

// ProfileRepository manages profile persistence.
type ProfileRepository interface {
	// Upsert creates or replaces the profile for a member.
	Upsert(ctx context.Context, profile *Profile) error

	// GetByMemberID retrieves a profile. A member without a saved
	// profile yields an empty Profile, not an error.
	GetByMemberID(ctx context.Context, memberID ulid.ULID) (*Profile, error)

	// List returns all members joined with their profiles, ordered by
	// username.
	List(ctx context.Context) ([]Entry, error)
}
