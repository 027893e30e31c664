// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/session"
)

// resolveSession turns the session cookie, if any, into a member on the
// request context. A missing, expired, or orphaned session leaves the
// request anonymous; the expired cookie is cleared on the way through.
func (s *Server) resolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		member, sess, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			s.logger.Error("session resolve failed", "error", err)
			s.serveError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		if member == nil {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := withIdentity(r.Context(), member, sess, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth gates member pages. Anonymous requests are bounced to the
// login form with a notice; the attempted path is stashed so a
// successful login resumes there.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if MemberFromContext(r.Context()) == nil {
			s.stashReturnTo(w, r.URL.RequestURI())
			s.pushCookieFlash(w, r, []session.Flash{{
				Message:  "Please log in to continue.",
				Severity: session.SeverityError,
			}})
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin gates the dashboard. Non-admin members are sent to their
// own landing page rather than shown a 403.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member := MemberFromContext(r.Context())
		if member == nil || member.Role != auth.RoleAdmin {
			s.flash(w, r, "That page is for administrators.", session.SeverityError)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// redirectIfAuthenticated keeps logged-in members out of the login and
// signup forms; they land on their role's home page instead.
func (s *Server) redirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if member := MemberFromContext(r.Context()); member != nil {
			http.Redirect(w, r, landingPath(member), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one structured line per request and feeds the
// request counter. Route patterns, not raw paths, keep metric
// cardinality bounded.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		}
		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// landingPath is the role-based post-login destination.
func landingPath(member *auth.Member) string {
	if member.Role == auth.RoleAdmin {
		return "/dashboard"
	}
	return "/"
}
