package domain

import (
	"sync"
	"time"
)

// Session is the per-connection identity. It starts anonymous and is bound to
// a user by the auth handshake.
type Session struct {
	ID            string
	UserID        int64
	Username      string
	Role          Role
	Authenticated bool
	CreatedAt     time.Time
	LastActiveAt  time.Time
	mu            sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func (s *Session) Authenticate(userID int64, username string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Username = username
	s.Role = role
	s.Authenticated = true
	s.LastActiveAt = time.Now()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

func (s *Session) GetUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

// Actor returns the session identity as an operation caller.
func (s *Session) Actor() Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Actor{ID: s.UserID, Name: s.Username, Role: s.Role}
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
