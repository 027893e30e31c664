// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/directory"
	"github.com/memberdir/memberdir/internal/session"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	member := MemberFromContext(r.Context())

	profile, err := s.directory.GetProfile(r.Context(), member.ID)
	if err != nil {
		s.logger.Error("profile load failed", "member_id", member.ID.String(), "error", err)
		profile = &directory.Profile{MemberID: member.ID}
	}

	s.render(w, http.StatusOK, "home", pageData{
		Title:   "Home",
		Member:  member,
		Flashes: s.collectFlashes(w, r),
		Profile: profile,
	})
}

func (s *Server) handleProfileForm(w http.ResponseWriter, r *http.Request) {
	member := MemberFromContext(r.Context())

	profile, err := s.directory.GetProfile(r.Context(), member.ID)
	if err != nil {
		s.logger.Error("profile load failed", "member_id", member.ID.String(), "error", err)
		s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}

	s.render(w, http.StatusOK, "profile", pageData{
		Title:   "Your profile",
		Member:  member,
		Flashes: s.collectFlashes(w, r),
		Profile: profile,
	})
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	member := MemberFromContext(r.Context())

	in := directory.UpdateInput{
		Username:        r.PostFormValue("username"),
		FullName:        r.PostFormValue("full_name"),
		StudentNumber:   r.PostFormValue("student_number"),
		BirthPlace:      r.PostFormValue("birth_place"),
		BirthDate:       r.PostFormValue("birth_date"),
		Religion:        r.PostFormValue("religion"),
		Phone:           r.PostFormValue("phone"),
		BloodType:       r.PostFormValue("blood_type"),
		HomeAddress:     r.PostFormValue("home_address"),
		BoardingAddress: r.PostFormValue("boarding_address"),
		Education:       r.PostFormValue("education"),
		Committees:      r.PostFormValue("committees"),
		Organizations:   r.PostFormValue("organizations"),
		Trainings:       r.PostFormValue("trainings"),
		Achievements:    r.PostFormValue("achievements"),
	}

	if err := s.directory.UpdateProfile(r.Context(), member.ID, in); err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateUsername):
			s.flash(w, r, "That username is already taken.", session.SeverityError)
		case errors.Is(err, auth.ErrStoreUnavailable):
			s.logger.Error("profile update unavailable", "error", err)
			s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		default:
			s.logger.Error("profile update failed", "member_id", member.ID.String(), "error", err)
			s.flash(w, r, "Could not save the profile. Please try again.", session.SeverityError)
		}
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	s.flash(w, r, "Profile saved.", session.SeveritySuccess)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.directory.ListMembers(r.Context())
	if err != nil {
		s.logger.Error("member listing failed", "error", err)
		s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}

	s.render(w, http.StatusOK, "dashboard", pageData{
		Title:   "Dashboard",
		Member:  MemberFromContext(r.Context()),
		Flashes: s.collectFlashes(w, r),
		Entries: entries,
	})
}

// handleMembersJSON feeds the dashboard table widget.
func (s *Server) handleMembersJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := s.directory.ListMembers(r.Context())
	if err != nil {
		s.logger.Error("member listing failed", "error", err)
		http.Error(w, `{"error":"service temporarily unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	type row struct {
		Username      string `json:"username"`
		Email         string `json:"email"`
		Role          string `json:"role"`
		FullName      string `json:"full_name"`
		StudentNumber string `json:"student_number"`
		Phone         string `json:"phone"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{
			Username:      e.Username,
			Email:         e.Email,
			Role:          e.Role,
			FullName:      e.FullName,
			StudentNumber: e.StudentNumber,
			Phone:         e.Phone,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": rows}); err != nil {
		s.logger.Error("member listing encode failed", "error", err)
	}
}
