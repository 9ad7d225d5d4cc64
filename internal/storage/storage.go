package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/docintel/internal/models"
)

// SessionStore keeps extraction sessions in memory for the lifetime of the server.
type SessionStore struct {
	sessions map[string]*models.ExtractionSession
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.ExtractionSession),
	}
}

func (s *SessionStore) Get(sessionID string) (*models.ExtractionSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(session *models.ExtractionSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// List returns every session, newest first.
func (s *SessionStore) List() []*models.ExtractionSession {
	s.mu.RLock()
	result := make([]*models.ExtractionSession, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete removes a session and reports whether it existed.
func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return exists
}
