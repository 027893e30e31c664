// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. Suitable for a
// single server process; multi-process deployments use the postgres
// store instead.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ticker   *time.Ticker
	done     chan struct{}
	closed   sync.Once
}

// NewMemoryStore creates an in-memory session store. If cleanupInterval
// is positive, a background goroutine evicts expired sessions on that
// cadence; Close stops it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		go s.cleanupLoop()
	}

	return s
}

// Create stores a new session.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.TokenHash] = copySession(sess)
	return nil
}

// GetByTokenHash retrieves a live session.
func (s *MemoryStore) GetByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.IsExpired() {
		delete(s.sessions, tokenHash)
		return nil, ErrExpired
	}

	return copySession(sess), nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

// UpdateLastSeen updates the LastSeenAt timestamp.
func (s *MemoryStore) UpdateLastSeen(_ context.Context, tokenHash string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return ErrNotFound
	}
	sess.LastSeenAt = lastSeen
	return nil
}

// PushFlash appends a flash notice to the session's queue.
func (s *MemoryStore) PushFlash(_ context.Context, tokenHash string, flash Flash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return ErrNotFound
	}
	sess.Flash = append(sess.Flash, flash)
	return nil
}

// DrainFlash atomically returns and empties the flash queue. The mutex
// makes read-and-clear a single operation; two racing drains see the
// notices exactly once between them.
func (s *MemoryStore) DrainFlash(_ context.Context, tokenHash string) ([]Flash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	drained := sess.Flash
	sess.Flash = nil
	return drained, nil
}

// DeleteExpired removes all expired sessions.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int64
	for hash, sess := range s.sessions {
		if sess.IsExpiredAt(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// CountActive returns the number of unexpired sessions.
func (s *MemoryStore) CountActive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var live int64
	for _, sess := range s.sessions {
		if !sess.IsExpiredAt(now) {
			live++
		}
	}
	return live, nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closed.Do(func() {
		close(s.done)
		if s.ticker != nil {
			s.ticker.Stop()
		}
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			_, _ = s.DeleteExpired(context.Background()) //nolint:errcheck // Best effort eviction
		case <-s.done:
			return
		}
	}
}

func copySession(sess *Session) *Session {
	c := *sess
	if sess.Flash != nil {
		c.Flash = make([]Flash, len(sess.Flash))
		copy(c.Flash, sess.Flash)
	}
	return &c
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
