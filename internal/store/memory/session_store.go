package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
type SessionStore struct {
	mu sync.RWMutex

	sessions map[uuid.UUID]*models.Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
	}
}

// DeleteForUser removes all sessions for a user regardless of context.
// Registered with UserStore.OnDelete to mirror the ON DELETE CASCADE
// constraint on sessions.user_id.
func (s *SessionStore) DeleteForUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	if !visible(ctx, session.OrgID) {
		return store.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[session.SessionID] = &clone

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || !visible(ctx, session.OrgID) {
		return nil, store.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	clone := *session
	return &clone, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session.
func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || !visible(ctx, session.OrgID) {
		return store.ErrSessionNotFound
	}

	session.LastUsedAt = time.Now()
	return nil
}

// Delete deletes a session by ID (logout).
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || !visible(ctx, session.OrgID) {
		return store.ErrSessionNotFound
	}

	delete(s.sessions, sessionID)
	return nil
}

// DeleteByUser deletes all sessions for a user (logout everywhere).
func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID && visible(ctx, session.OrgID) {
			delete(s.sessions, id)
			count++
		}
	}

	return count, nil
}

// DeleteExpired deletes all expired sessions visible in the context.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() && visible(ctx, session.OrgID) {
			delete(s.sessions, id)
			count++
		}
	}

	return count, nil
}
