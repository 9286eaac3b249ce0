package httpmiddleware

import "net/http"

// MaxBodyBytes returns a middleware that caps request body size at n bytes.
// Reads past the limit fail with *http.MaxBytesError, which handlers map to
// 413 Request Entity Too Large.
func MaxBodyBytes(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
