// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package web serves the MemberDir HTML application: the login, signup,
// forgot-password, and logout flows plus the member pages behind them.
package web

import (
	"context"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/directory"
	"github.com/memberdir/memberdir/internal/observability"
	"github.com/memberdir/memberdir/internal/session"
)

// Config carries the server's construction-time settings.
type Config struct {
	Addr         string
	Secret       string
	CookieSecure bool
}

// Server wires the HTTP surface to the auth, directory, and session
// layers. It owns the parsed templates and the listener lifecycle.
type Server struct {
	cfg       Config
	auth      *auth.Service
	directory *directory.Service
	sessions  *session.Manager
	metrics   *observability.Metrics
	logger    *slog.Logger

	templates    map[string]*template.Template
	secret       string
	cookieSecure bool

	router     chi.Router
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer builds the HTTP server. The secret signs the one-shot
// flash and return-to cookies; it must come from the environment, and
// an empty one is a hard construction error.
func NewServer(cfg Config, authSvc *auth.Service, dirSvc *directory.Service, sessions *session.Manager, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Code("WEB_NIL_AUTH").Errorf("auth service cannot be nil")
	}
	if dirSvc == nil {
		return nil, oops.Code("WEB_NIL_DIRECTORY").Errorf("directory service cannot be nil")
	}
	if sessions == nil {
		return nil, oops.Code("WEB_NIL_SESSIONS").Errorf("session manager cannot be nil")
	}
	if cfg.Secret == "" {
		return nil, oops.Code("WEB_NO_SECRET").Errorf("cookie signing secret cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		auth:         authSvc,
		directory:    dirSvc,
		sessions:     sessions,
		metrics:      metrics,
		logger:       logger,
		templates:    templates,
		secret:       cfg.Secret,
		cookieSecure: cfg.CookieSecure,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.resolveSession)

	r.Group(func(r chi.Router) {
		r.Use(s.redirectIfAuthenticated)
		r.Get("/auth/login", s.handleLoginForm)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/signup", s.handleSignupForm)
		r.Post("/auth/signup", s.handleSignup)
		r.Get("/auth/forgot", s.handleForgotForm)
		r.Post("/auth/forgot", s.handleForgot)
	})

	r.Get("/auth/logout", s.handleLogout)
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleHome)
		r.Get("/profile", s.handleProfileForm)
		r.Post("/profile", s.handleProfileUpdate)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/dashboard/members.json", s.handleMembersJSON)
		})
	})

	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and begins serving. The returned channel
// reports the terminal serve error, if any, and is closed on clean
// shutdown.
func (s *Server) Start() (<-chan error, error) {
	if s.running.Load() {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, oops.Code("WEB_LISTEN_FAILED").
			With("addr", s.cfg.Addr).
			Wrap(err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running.Store(true)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("web server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- oops.Code("WEB_SERVE_FAILED").Wrap(err)
		}
	}()
	return errCh, nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
