package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/attendly/internal/models"
)

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// SessionRepository keeps session records in process memory.
// Records are copied on the way in and out so callers never share state.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRepository creates a store whose records lapse ttl after their last save
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (r *SessionRepository) WithClock(now func() time.Time) *SessionRepository {
	r.now = now
	return r
}

func (r *SessionRepository) Get(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, models.ErrNotFound
	}
	if !r.now().Before(entry.expiresAt) {
		r.mu.Lock()
		if cur, ok := r.sessions[id]; ok && !r.now().Before(cur.expiresAt) {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		return nil, models.ErrNotFound
	}
	return entry.session.Clone(), nil
}

func (r *SessionRepository) Save(_ context.Context, sess *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = sessionEntry{
		session:   sess.Clone(),
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// DeleteExpired drops every lapsed record and returns how many were removed
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int64
	for id, entry := range r.sessions {
		if !now.Before(entry.expiresAt) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
