// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberdir/memberdir/internal/auth"
	authpg "github.com/memberdir/memberdir/internal/auth/postgres"
	"github.com/memberdir/memberdir/internal/config"
	"github.com/memberdir/memberdir/internal/directory"
	dirpg "github.com/memberdir/memberdir/internal/directory/postgres"
	"github.com/memberdir/memberdir/internal/logging"
	"github.com/memberdir/memberdir/internal/observability"
	"github.com/memberdir/memberdir/internal/session"
	sessionpg "github.com/memberdir/memberdir/internal/session/postgres"
	"github.com/memberdir/memberdir/internal/store"
	"github.com/memberdir/memberdir/internal/web"
	"github.com/memberdir/memberdir/pkg/errutil"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = time.Minute
	serviceName          = "memberdir"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MemberDir HTTP server",
		Long: `Start the HTTP server: login, signup, and password reset flows,
member profile pages, and the administrator dashboard.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use the default implementations.
type ServeDeps struct {
	// ConnectDB opens the database pool.
	// Default: store.Connect
	ConnectDB func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func runServe(cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConnectDB == nil {
		deps.ConnectDB = store.Connect
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.RequireSecrets(); err != nil {
		return err
	}

	logging.SetDefault(serviceName, version, cfg.LogFormat, cfg.LogLevel)
	logger := slog.Default()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := deps.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	members := authpg.NewMemberRepository(pool)
	hasher := auth.NewArgon2idHasher(auth.Params{
		Time:    cfg.Argon2.Time,
		Memory:  cfg.Argon2.Memory,
		Threads: cfg.Argon2.Threads,
		SaltLen: auth.DefaultParams().SaltLen,
		KeyLen:  auth.DefaultParams().KeyLen,
	})

	authSvc, err := auth.NewServiceWithLogger(members, hasher, logger)
	if err != nil {
		return err
	}

	profiles := dirpg.NewProfileRepository(pool)
	dirSvc, err := directory.NewService(members, profiles, logger)
	if err != nil {
		return err
	}

	// Expired-session eviction runs through the shared sweep below, so
	// the memory store's own janitor stays off.
	var sessionStore session.Store
	switch cfg.SessionStore {
	case "memory":
		memStore := session.NewMemoryStore(0)
		defer func() {
			if closeErr := memStore.Close(); closeErr != nil {
				logger.Warn("error closing session store", "error", closeErr)
			}
		}()
		sessionStore = memStore
	default:
		sessionStore = sessionpg.NewStore(pool)
	}

	sessions, err := session.NewManager(sessionStore, members, logger)
	if err != nil {
		return err
	}

	// The observability server is optional; the web server is not.
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			return pool.Ping(ctx) == nil
		})
		metrics = obsServer.Metrics()
	}

	go sweepSessions(ctx, sessionStore, sessionSweepInterval, metrics, logger)

	webServer, err := web.NewServer(web.Config{
		Addr:         cfg.ListenAddr,
		Secret:       cfg.SessionSecret,
		CookieSecure: cfg.CookieSecure,
	}, authSvc, dirSvc, sessions, metrics, logger)
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	webErrChan, err := webServer.Start()
	if err != nil {
		return oops.Code("WEB_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	cmd.Println("MemberDir server started")
	logger.Info("server ready", "listen_addr", webServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping web server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// sweepSessions periodically evicts expired sessions from the store and
// refreshes the active-session gauge. Runs until ctx is cancelled;
// metrics may be nil when the observability server is disabled.
func sweepSessions(ctx context.Context, sessionStore session.Store, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := sessionStore.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("evicted expired sessions", "count", removed)
			}
			if metrics != nil {
				live, err := sessionStore.CountActive(ctx)
				if err != nil {
					logger.Warn("session count failed", "error", err)
					continue
				}
				metrics.SessionsActive.Set(float64(live))
			}
		case <-ctx.Done():
			return
		}
	}
}

// monitorServerErrors cancels the run context when a server's error
// channel delivers a terminal error. A closed channel means a clean
// stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			errutil.LogError(slog.Default().With("server", serverName), "server error, triggering shutdown", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
