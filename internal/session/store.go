// Package session holds the transient per-upload state: the immutable
// original table, the current cleaned view, and the stats of the last
// pipeline run. There is no persistence; sessions vanish on restart by
// design.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tablescrub/internal/clean"
	"tablescrub/internal/table"
)

// ErrNotFound is returned when a session ID is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// ErrStoreFull is returned when the store has reached its session cap.
var ErrStoreFull = errors.New("too many active sessions")

// Session is the explicit state object for one uploaded file. Original is
// never modified after creation; every cleaning run starts from it, which
// makes re-applying options idempotent with respect to prior runs.
type Session struct {
	ID         string
	FileName   string
	Delimiter  table.Delimiter
	Headers    table.Header
	Original   table.Table
	Current    table.Table
	Options    clean.Options
	Stats      clean.Stats
	CreatedAt  time.Time
	LastAccess time.Time
}

// Store is an in-memory session registry with TTL eviction. Tables handed
// out through snapshots are shared but never mutated in place, so readers
// need no further locking.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store and starts its eviction goroutine. Sessions
// idle longer than ttl are dropped; maxSessions of 0 means unlimited.
func NewStore(ttl, sweepInterval time.Duration, maxSessions int) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      maxSessions,
		done:     make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Close stops the eviction goroutine.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.done:
			return
		}
	}
}

func (s *Store) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// Create registers a new session from a parsed upload. The parsed rows are
// stored once as the immutable original and cloned into the current view.
func (s *Store) Create(fileName string, parsed table.Parsed) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.sessions) >= s.max {
		return Session{}, ErrStoreFull
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.New().String(),
		FileName:   fileName,
		Delimiter:  parsed.Delimiter,
		Headers:    parsed.Headers,
		Original:   parsed.Rows,
		Current:    parsed.Rows.Clone(),
		Options:    clean.DefaultOptions(),
		CreatedAt:  now,
		LastAccess: now,
	}
	s.sessions[sess.ID] = sess

	return *sess, nil
}

// Get returns a snapshot of the session and refreshes its idle timer.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.LastAccess = time.Now()
	return *sess, nil
}

// Clean re-runs the pipeline from the immutable original with the given
// options and swaps in the result. The current view is only replaced after
// the run completes, so the visible table is never left half-transformed.
func (s *Store) Clean(id string, opts clean.Options) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	cleaned, stats := clean.Apply(sess.Original, opts)
	sess.Current = cleaned
	sess.Options = opts
	sess.Stats = stats
	sess.LastAccess = time.Now()

	return *sess, nil
}

// Reset restores the current view to the uploaded original and clears the
// stats of the previous run. The selected options are kept.
func (s *Store) Reset(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	sess.Current = sess.Original.Clone()
	sess.Stats = clean.Stats{}
	sess.LastAccess = time.Now()

	return *sess, nil
}

// Delete removes a session. Deleting an unknown ID returns ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
