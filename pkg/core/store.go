package core

import (
	"fmt"
	"sort"
	"sync"
)

// SessionStore owns CallSession entities for the process lifetime. All
// writes are funneled through the orchestrator; the store guarantees id
// uniqueness and hands out snapshots, never live references.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*CallSession)}
}

// Create inserts a new session. A colliding id is a conflict, never a
// silent regeneration.
func (s *SessionStore) Create(sess CallSession) error {
	if sess.ID == "" {
		return NewValidationErrorWithParam("session id is required", "session_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return &Error{
			Type:    ErrConflict,
			Message: fmt.Sprintf("session %q already exists", sess.ID),
			Code:    CodeSessionIDCollision,
		}
	}
	stored := sess
	s.sessions[sess.ID] = &stored
	return nil
}

// Get returns a snapshot of the named session.
func (s *SessionStore) Get(id string) (SessionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return SessionSnapshot{}, false
	}
	return sess.snapshot(), true
}

// List returns snapshots of all sessions ordered by creation time, oldest
// first.
func (s *SessionStore) List() []SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionSnapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update runs fn against the live session under the store lock. fn returning
// an error leaves any changes it already made in place; callers keep their
// mutations atomic by validating before writing.
func (s *SessionStore) Update(id string, fn func(*CallSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("session %q does not exist", id))
	}
	return fn(sess)
}

// Remove drops a session from the store.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveLen returns the number of sessions that have not ended. Ended
// sessions stay in the store for reads, so Len alone overstates load.
func (s *SessionStore) ActiveLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.State != CallEnded {
			n++
		}
	}
	return n
}
