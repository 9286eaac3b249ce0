// Package auth defines the bearer-token verification boundary. The identity
// service that issues tokens is external; the checkout core only needs to
// turn a token into an Identity or reject it.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned for missing, malformed, or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated user attached to a request.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

// Verifier validates a bearer token and resolves the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the identity set by the security middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok
}
