// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"context"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/session"
)

type contextKey int

const (
	memberKey contextKey = iota
	sessionKey
	tokenKey
)

// withIdentity stores the resolved member, session, and plaintext token
// on the request context. The member and the flash-queue handle travel
// as explicit inputs from here on; there is no ambient global state.
func withIdentity(ctx context.Context, member *auth.Member, sess *session.Session, token string) context.Context {
	ctx = context.WithValue(ctx, memberKey, member)
	ctx = context.WithValue(ctx, sessionKey, sess)
	ctx = context.WithValue(ctx, tokenKey, token)
	return ctx
}

// MemberFromContext returns the authenticated member, or nil for an
// anonymous request.
func MemberFromContext(ctx context.Context) *auth.Member {
	m, _ := ctx.Value(memberKey).(*auth.Member)
	return m
}

// SessionFromContext returns the resolved session, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// tokenFromContext returns the plaintext session token, or "".
func tokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
