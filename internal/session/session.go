// Package session holds per-chat dialogue state. Every field that the
// original flow kept in process-wide scratch variables lives here,
// scoped to one chat, so concurrent sessions never interfere.
package session

import (
	"sync"
	"time"

	"photokeep/internal/pathkey"
)

// Phase is the position of a session in the login/upload dialogue.
type Phase int

const (
	// Anonymous sessions have not started the login dialogue.
	Anonymous Phase = iota
	// AwaitingLogin means the next message is captured as the login.
	AwaitingLogin
	// AwaitingPassword means the next message is checked as the password.
	AwaitingPassword
	// Authenticated sessions hold a token but no destination path.
	Authenticated
	// AwaitingPath means the next message is parsed as a path descriptor.
	AwaitingPath
	// ReadyForUpload means a destination path is resolved and photos
	// are accepted.
	ReadyForUpload
)

func (p Phase) String() string {
	switch p {
	case Anonymous:
		return "anonymous"
	case AwaitingLogin:
		return "awaiting_login"
	case AwaitingPassword:
		return "awaiting_password"
	case Authenticated:
		return "authenticated"
	case AwaitingPath:
		return "awaiting_path"
	case ReadyForUpload:
		return "ready_for_upload"
	}
	return "unknown"
}

// Session is the dialogue state for one chat. The owning worker is the
// only goroutine that touches a Session after Manager.Get returns it.
type Session struct {
	ChatID int64

	Phase        Phase
	PendingLogin string
	Failures     int
	Token        string
	Path         *pathkey.Key
	// PathAction remembers whether a pending path entry is for an
	// upload or an admin view.
	PathAction string
	// LockedUntil suspends login processing for this session only.
	LockedUntil time.Time
}

// Authenticated reports whether the session holds any token.
func (s *Session) Authenticated() bool { return s.Token != "" }

// Locked reports whether the lockout deadline is still in the future.
func (s *Session) Locked(now time.Time) bool {
	return now.Before(s.LockedUntil)
}

// Lock sets the lockout deadline, zeroes the failure counter, and
// returns the session to the initial phase.
func (s *Session) Lock(until time.Time) {
	s.LockedUntil = until
	s.Failures = 0
	s.PendingLogin = ""
	s.Phase = Anonymous
}

// Logout discards the token and any resolved path, returning the
// session to the initial phase. The token becomes invalid immediately:
// any later guarded command sees an empty token and is rejected.
func (s *Session) Logout() {
	s.Token = ""
	s.Path = nil
	s.PathAction = ""
	s.PendingLogin = ""
	s.Failures = 0
	s.Phase = Anonymous
}

// Manager owns all live sessions, keyed by chat id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating it on first contact.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return s
	}
	s = &Session{ChatID: chatID, Phase: Anonymous}
	m.sessions[chatID] = s
	return s
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
