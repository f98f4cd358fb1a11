// Package identity models the viewer: either an authenticated user with a
// stable identifier and persisted nickname, or a guest with a locally
// generated session nickname and no identifier. Components depend on the
// narrow read-only interface, never on package-level state.
package identity

import (
	"errors"
	"sync"
	"time"
)

// ErrRequired signals that the attempted action needs an authenticated
// identity. It is distinct from validation failure so callers can prompt
// for sign-in instead of showing a field error.
var ErrRequired = errors.New("sign-in required")

// Identity is the read-only view of the current viewer.
type Identity interface {
	// CurrentUserID returns the stable user identifier, empty for guests.
	CurrentUserID() string
	// CurrentNickname returns the display nickname; guests get a locally
	// generated one.
	CurrentNickname() string
	// Authenticated reports whether a user identifier is resolved.
	Authenticated() bool
}

// Session is the mutable identity holder with explicit login and logout
// transitions. The zero transition target is guest mode.
type Session struct {
	mu       sync.RWMutex
	userID   string
	nickname string
}

// NewSession creates a guest session with a generated nickname.
func NewSession() *Session {
	return &Session{
		nickname: GenerateNickname(time.Now().UnixNano()),
	}
}

// Login transitions to an authenticated identity.
func (s *Session) Login(userID, nickname string) error {
	if userID == "" {
		return errors.New("user id must not be empty")
	}
	if nickname == "" {
		nickname = DefaultNickname
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.nickname = nickname
	return nil
}

// Logout transitions back to guest mode with a fresh session nickname.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.nickname = GenerateNickname(time.Now().UnixNano())
}

// SetNickname updates the persisted nickname preference.
func (s *Session) SetNickname(nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nickname != "" {
		s.nickname = nickname
	}
}

// CurrentUserID implements Identity.
func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// CurrentNickname implements Identity.
func (s *Session) CurrentNickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Authenticated implements Identity.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

// Static is a fixed Identity, convenient in tests.
type Static struct {
	UserID   string
	Nickname string
}

// CurrentUserID implements Identity.
func (s Static) CurrentUserID() string { return s.UserID }

// CurrentNickname implements Identity.
func (s Static) CurrentNickname() string { return s.Nickname }

// Authenticated implements Identity.
func (s Static) Authenticated() bool { return s.UserID != "" }
