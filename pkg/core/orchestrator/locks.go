package orchestrator

import "sync"

// sessionLocks hands out one exclusive lock per session id. Entries are
// reference counted and dropped when the last holder releases, so the map
// does not grow with dead sessions.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is held and returns the release
// function. Release exactly once.
func (s *sessionLocks) acquire(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, sessionID)
			}
			s.mu.Unlock()
		})
	}
}
