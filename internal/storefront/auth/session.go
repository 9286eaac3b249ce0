// Package auth tracks the storefront's view of the signed-in user. The
// identity backend reports asynchronously, so consumers gate on the first
// resolution before trusting Current.
package auth

import (
	"sync"
	"time"
)

// Session is a resolved sign-in. Token is the bearer credential sent with
// authenticated requests.
type Session struct {
	Token     string
	UserID    string
	Name      string
	Email     string
	Phone     string
	ExpiresAt time.Time
}

// Provider exposes the current session and a gate that opens once the
// identity backend has reported for the first time, whether signed in or
// confirmed signed out.
type Provider interface {
	// FirstResolution returns a channel closed after the initial identity
	// report. Before it closes, Current is meaningless.
	FirstResolution() <-chan struct{}
	// Current returns the active session, if any.
	Current() (Session, bool)
}

// SessionState is the in-memory Provider implementation. The zero value is
// not usable, call NewSessionState.
type SessionState struct {
	mu       sync.RWMutex
	session  Session
	signedIn bool

	resolveOnce sync.Once
	resolved    chan struct{}
}

func NewSessionState() *SessionState {
	return &SessionState{resolved: make(chan struct{})}
}

var _ Provider = (*SessionState)(nil)

// FirstResolution implements Provider.
func (s *SessionState) FirstResolution() <-chan struct{} {
	return s.resolved
}

// Current implements Provider.
func (s *SessionState) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.signedIn
}

// Resolve records a signed-in session and opens the first-resolution gate.
func (s *SessionState) Resolve(session Session) {
	s.Set(session)
	s.resolveOnce.Do(func() { close(s.resolved) })
}

// ResolveLoggedOut opens the gate without a session. The identity backend
// has answered: nobody is signed in.
func (s *SessionState) ResolveLoggedOut() {
	s.Clear()
	s.resolveOnce.Do(func() { close(s.resolved) })
}

// Set replaces the current session. It does not touch the gate, so a token
// refresh after resolution is just a Set.
func (s *SessionState) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.signedIn = true
}

// Clear drops the current session, as on sign-out.
func (s *SessionState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	s.signedIn = false
}
