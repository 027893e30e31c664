// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
)

// Service coordinates profile updates and the dashboard listing.
type Service struct {
	members  auth.MemberRepository
	profiles ProfileRepository
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(members auth.MemberRepository, profiles ProfileRepository, logger *slog.Logger) (*Service, error) {
	if members == nil {
		return nil, oops.Code("DIRECTORY_INVALID_DEPS").Errorf("members repository is required")
	}
	if profiles == nil {
		return nil, oops.Code("DIRECTORY_INVALID_DEPS").Errorf("profiles repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{members: members, profiles: profiles, logger: logger}, nil
}

// UpdateInput carries the profile form fields. Username may differ from
// the member's current one; the change is applied if it does not
// collide with another account. Password is deliberately absent —
// profile updates never touch credentials.
type UpdateInput struct {
	Username        string
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
}

// UpdateProfile saves the member's profile, renaming the account first
// when the username changed. The existence pre-check is a fast path;
// the unique constraint on members.username is the real guard.
func (s *Service) UpdateProfile(ctx context.Context, memberID ulid.ULID, in UpdateInput) error {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.ErrNotFound
		}
		return oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "get member by id").
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}

	if in.Username != "" && in.Username != member.Username {
		if err := auth.ValidateUsername(in.Username); err != nil {
			return err
		}
		if other, err := s.members.GetByUsername(ctx, in.Username); err == nil && other.ID != memberID {
			return auth.ErrDuplicateUsername
		} else if err != nil && !errors.Is(err, auth.ErrNotFound) {
			return oops.Code("PROFILE_UPDATE_FAILED").
				With("operation", "check username").
				Wrap(errors.Join(auth.ErrStoreUnavailable, err))
		}

		if err := s.members.UpdateUsername(ctx, memberID, in.Username); err != nil {
			if errors.Is(err, auth.ErrDuplicateUsername) {
				return auth.ErrDuplicateUsername
			}
			return oops.Code("PROFILE_UPDATE_FAILED").
				With("operation", "update username").
				Wrap(errors.Join(auth.ErrStoreUnavailable, err))
		}
	}

	profile := &Profile{
		MemberID:        memberID,
		FullName:        in.FullName,
		StudentNumber:   in.StudentNumber,
		BirthPlace:      in.BirthPlace,
		BirthDate:       in.BirthDate,
		Religion:        in.Religion,
		Phone:           in.Phone,
		BloodType:       in.BloodType,
		HomeAddress:     in.HomeAddress,
		BoardingAddress: in.BoardingAddress,
		Education:       in.Education,
		Committees:      in.Committees,
		Organizations:   in.Organizations,
		Trainings:       in.Trainings,
		Achievements:    in.Achievements,
		UpdatedAt:       time.Now(),
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "upsert profile").
			With("member_id", memberID.String()).
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}

	s.logger.InfoContext(ctx, "profile updated", "member_id", memberID.String())
	return nil
}

// GetProfile returns the member's profile, empty if never saved.
func (s *Service) GetProfile(ctx context.Context, memberID ulid.ULID) (*Profile, error) {
	profile, err := s.profiles.GetByMemberID(ctx, memberID)
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile").
			With("member_id", memberID.String()).
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}
	return profile, nil
}

// ListMembers returns the dashboard listing, ordered by username.
func (s *Service) ListMembers(ctx context.Context) ([]Entry, error) {
	entries, err := s.profiles.List(ctx)
	if err != nil {
		return nil, oops.Code("MEMBER_LIST_FAILED").
			With("operation", "list members").
			Wrap(errors.Join(auth.ErrStoreUnavailable, err))
	}
	return entries, nil
}
