package domain

import (
	"sync"
	"time"
)

// Session is the per-connection state attached by the handshake gate.
// Identity is set exactly once, before any event handler runs; room
// bookkeeping tracks at most one chat room and one call room per project.
type Session struct {
	ID           string
	CreatedAt    time.Time
	lastActiveAt time.Time

	userID   uint
	email    string
	username string
	authed   bool

	chatRooms map[uint]string // projectID -> chat room name
	callRooms map[uint]string // projectID -> call room name

	mu sync.RWMutex
}

// NewSession creates a new session for a connection id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActiveAt: now,
		chatRooms:    make(map[uint]string),
		callRooms:    make(map[uint]string),
	}
}

// Authenticate attaches the decoded identity. Called once at handshake.
func (s *Session) Authenticate(userID uint, email, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.email = email
	s.username = username
	s.authed = true
	s.lastActiveAt = time.Now()
}

// IsAuthenticated reports whether an identity is attached.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

// UserID returns the authenticated user id.
func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Email returns the authenticated email.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Username returns the authenticated display name.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// ChatRoom returns the chat room currently held for a project, if any.
func (s *Session) ChatRoom(projectID uint) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.chatRooms[projectID]
	return room, ok
}

// SetChatRoom records the chat room held for a project, replacing any
// previous one for the same project.
func (s *Session) SetChatRoom(projectID uint, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatRooms[projectID] = room
	s.lastActiveAt = time.Now()
}

// CallRoom returns the call room currently held for a project, if any.
func (s *Session) CallRoom(projectID uint) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.callRooms[projectID]
	return room, ok
}

// SetCallRoom records the call room held for a project.
func (s *Session) SetCallRoom(projectID uint, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callRooms[projectID] = room
	s.lastActiveAt = time.Now()
}

// ClearCallRoom forgets the call room held for a project.
func (s *Session) ClearCallRoom(projectID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callRooms, projectID)
	s.lastActiveAt = time.Now()
}

// ActiveCallRooms returns a snapshot of projectID -> call room, used by
// disconnect cleanup.
func (s *Session) ActiveCallRooms() map[uint]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint]string, len(s.callRooms))
	for id, room := range s.callRooms {
		out[id] = room
	}
	return out
}

// UpdateActivity bumps the last-activity timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}
