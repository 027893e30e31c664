// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/memberdir/memberdir/internal/config"
	"github.com/memberdir/memberdir/internal/observability"
	"github.com/memberdir/memberdir/internal/session"
)

func TestNewServeCmd_FlagDefaults(t *testing.T) {
	cmd := NewServeCmd()
	def := config.Default()

	listenAddr, err := cmd.Flags().GetString("listen-addr")
	require.NoError(t, err)
	assert.Equal(t, def.ListenAddr, listenAddr)

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	require.NoError(t, err)
	assert.Equal(t, def.MetricsAddr, metricsAddr)

	logFormat, err := cmd.Flags().GetString("log-format")
	require.NoError(t, err)
	assert.Equal(t, def.LogFormat, logFormat)

	logLevel, err := cmd.Flags().GetString("log-level")
	require.NoError(t, err)
	assert.Equal(t, def.LogLevel, logLevel)

	sessionStore, err := cmd.Flags().GetString("session-store")
	require.NoError(t, err)
	assert.Equal(t, def.SessionStore, sessionStore)

	cookieSecure, err := cmd.Flags().GetBool("cookie-secure")
	require.NoError(t, err)
	assert.Equal(t, def.CookieSecure, cookieSecure)
}

func sweepTestSession(t *testing.T, ttl time.Duration) *session.Session {
	t.Helper()
	sess, err := session.New(ulid.Make(), session.HashToken(ulid.Make().String()), time.Now().Add(ttl))
	require.NoError(t, err)
	return sess
}

func TestSweepSessions_EvictsAndSetsGauge(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := session.NewMemoryStore(0)
	live := sweepTestSession(t, time.Hour)
	dead := sweepTestSession(t, -time.Minute)
	require.NoError(t, store.Create(ctx, live))
	require.NoError(t, store.Create(ctx, dead))

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	go sweepSessions(ctx, store, 5*time.Millisecond, metrics, slog.Default())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SessionsActive) == 1
	}, time.Second, 5*time.Millisecond, "gauge should settle on the live session count")

	_, err := store.GetByTokenHash(ctx, dead.TokenHash)
	require.ErrorIs(t, err, session.ErrNotFound, "expired session should be evicted")
	_, err = store.GetByTokenHash(ctx, live.TokenHash)
	require.NoError(t, err)
}

func TestSweepSessions_NilMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := session.NewMemoryStore(0)
	dead := sweepTestSession(t, -time.Minute)
	require.NoError(t, store.Create(ctx, dead))

	go sweepSessions(ctx, store, 5*time.Millisecond, nil, slog.Default())

	require.Eventually(t, func() bool {
		_, err := store.GetByTokenHash(ctx, dead.TokenHash)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}
