// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/session"
)

// flash queues a notice for the next rendered page: on the session when
// the request is authenticated, through the signed one-shot cookie when
// it is not.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, message string, severity session.Severity) {
	if token := tokenFromContext(r.Context()); token != "" {
		if err := s.sessions.PushFlash(r.Context(), token, message, severity); err == nil {
			return
		}
		// Fall through to the cookie if the store refused; the notice
		// matters more than where it rides.
	}
	s.pushCookieFlash(w, r, []session.Flash{{Message: message, Severity: severity}})
}

// collectFlashes drains every queued notice, cookie channel first so
// pre-login notices render ahead of post-login ones.
func (s *Server) collectFlashes(w http.ResponseWriter, r *http.Request) []session.Flash {
	flashes := s.drainCookieFlash(w, r)
	if token := tokenFromContext(r.Context()); token != "" {
		sessionFlashes, err := s.sessions.DrainFlash(r.Context(), token)
		if err != nil {
			s.logger.Error("flash drain failed", "error", err)
		}
		flashes = append(flashes, sessionFlashes...)
	}
	return flashes
}

// serveError renders the error page with the given status.
func (s *Server) serveError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, status, "error", pageData{
		Title:  "Error",
		Member: MemberFromContext(r.Context()),
		Error:  message,
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", pageData{
		Title:   "Log in",
		Flashes: s.collectFlashes(w, r),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	member, err := s.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.logger.Error("login unavailable", "error", err)
			s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		if s.metrics != nil {
			s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		}
		s.flash(w, r, "Invalid username or password.", session.SeverityError)
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	token, _, err := s.sessions.Start(r.Context(), member)
	if err != nil {
		s.logger.Error("session start failed", "error", err)
		s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}
	s.setSessionCookie(w, token)
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	}

	if err := s.sessions.PushFlash(r.Context(), token, "Welcome back, "+member.Username+".", session.SeveritySuccess); err != nil {
		s.logger.Warn("welcome flash failed", "error", err)
	}

	target := s.takeReturnTo(w, r)
	if target == "" {
		target = landingPath(member)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.sessions.Destroy(r.Context(), token); err != nil {
			// Cookie still gets cleared; the orphan record expires on
			// its own.
			s.logger.Warn("session destroy failed", "error", err)
		}
	}
	s.clearSessionCookie(w)
	s.pushCookieFlash(w, r, []session.Flash{{
		Message:  "You have been logged out.",
		Severity: session.SeveritySuccess,
	}})
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "signup", pageData{
		Title:   "Sign up",
		Flashes: s.collectFlashes(w, r),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	in := auth.SignupInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("password2"),
	}

	if _, err := s.auth.Signup(r.Context(), in); err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.logger.Error("signup unavailable", "error", err)
			s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		if s.metrics != nil {
			s.metrics.SignupsTotal.WithLabelValues("failure").Inc()
		}
		s.flash(w, r, signupFlashMessage(err), session.SeverityError)
		http.Redirect(w, r, "/auth/signup", http.StatusSeeOther)
		return
	}

	if s.metrics != nil {
		s.metrics.SignupsTotal.WithLabelValues("success").Inc()
	}
	s.flash(w, r, "Account created. Please log in.", session.SeveritySuccess)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// signupFlashMessage maps a signup failure to the notice the form
// shows. Validation failures name the field; everything else stays
// generic.
func signupFlashMessage(err error) string {
	if field, ok := auth.IsMissingField(err); ok {
		return "Please fill in the " + field + " field."
	}
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "Passwords do not match."
	case errors.Is(err, auth.ErrDuplicateUsername):
		return "That username is already taken."
	}
	if oerr, ok := oops.AsOops(err); ok {
		switch oerr.Code() {
		case "AUTH_INVALID_USERNAME", "AUTH_INVALID_EMAIL":
			return "Could not create the account: " + oerr.Error() + "."
		}
	}
	return "Could not create the account. Please try again."
}

func (s *Server) handleForgotForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "forgot", pageData{
		Title:   "Reset password",
		Flashes: s.collectFlashes(w, r),
	})
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if err := s.auth.ResetPassword(r.Context(), username, email, password); err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			s.logger.Error("password reset unavailable", "error", err)
			s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		if field, ok := auth.IsMissingField(err); ok {
			s.flash(w, r, "Please fill in the "+field+" field.", session.SeverityError)
		} else {
			// One notice for unknown username and mismatched email
			// alike; the form never confirms which accounts exist.
			s.flash(w, r, "Could not reset the password for that account.", session.SeverityError)
		}
		http.Redirect(w, r, "/auth/forgot", http.StatusSeeOther)
		return
	}

	s.flash(w, r, "Password updated. Please log in.", session.SeveritySuccess)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
