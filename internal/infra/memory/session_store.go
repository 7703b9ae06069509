package memory

import (
	"context"
	"sync"
)

// SessionStore is an in-memory implementation of app.SessionRegistry.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]map[string]struct{}),
	}
}

func (s *SessionStore) Register(_ context.Context, quizID int64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[quizID]
	if !ok {
		live = make(map[string]struct{})
		s.sessions[quizID] = live
	}
	live[sessionID] = struct{}{}
	return nil
}

// Unregister drops the session and the quiz entry once it is empty.
func (s *SessionStore) Unregister(_ context.Context, quizID int64, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[quizID]
	if !ok {
		return
	}
	delete(live, sessionID)
	if len(live) == 0 {
		delete(s.sessions, quizID)
	}
}

func (s *SessionStore) Count(_ context.Context, quizID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[quizID]), nil
}
