package handler

import (
	"net/http"

	"github.com/emkart/storefront/internal/domain/auth"
)

// RequireAuth returns middleware that authenticates the request via the
// Authorization header. The header carries the raw bearer token, as the
// storefront client sends it. Missing or invalid tokens get 401; the
// resolved identity is stored in the request context.
func RequireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
