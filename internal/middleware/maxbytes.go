package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes is the default maximum request body size (1 MiB).
const DefaultMaxBodyBytes = 1 << 20

// MaxBytes limits the body of POST, PUT and PATCH requests. Handlers see a
// *http.MaxBytesError from the decoder once the limit is crossed.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
