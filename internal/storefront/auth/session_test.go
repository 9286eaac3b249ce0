package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateOpen(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestSessionState_GateClosedUntilFirstResolution(t *testing.T) {
	s := NewSessionState()

	assert.False(t, gateOpen(s.FirstResolution()))
	_, ok := s.Current()
	assert.False(t, ok)

	s.Resolve(Session{Token: "tok-1", UserID: "u1"})

	require.True(t, gateOpen(s.FirstResolution()))
	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "tok-1", got.Token)
}

func TestSessionState_ResolveLoggedOutOpensGateWithoutSession(t *testing.T) {
	s := NewSessionState()
	s.ResolveLoggedOut()

	require.True(t, gateOpen(s.FirstResolution()))
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSessionState_SetAfterResolutionDoesNotReopenGate(t *testing.T) {
	s := NewSessionState()
	s.Resolve(Session{Token: "tok-1"})

	s.Set(Session{Token: "tok-2", ExpiresAt: time.Now().Add(time.Hour)})

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "tok-2", got.Token)
	assert.True(t, gateOpen(s.FirstResolution()))
}

func TestSessionState_ClearDropsSessionKeepsGate(t *testing.T) {
	s := NewSessionState()
	s.Resolve(Session{Token: "tok-1"})
	s.Clear()

	_, ok := s.Current()
	assert.False(t, ok)
	assert.True(t, gateOpen(s.FirstResolution()))
}

func TestSessionState_LateSignInAfterLoggedOutResolution(t *testing.T) {
	s := NewSessionState()
	s.ResolveLoggedOut()

	s.Set(Session{Token: "tok-late", UserID: "u9"})

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "u9", got.UserID)
}
