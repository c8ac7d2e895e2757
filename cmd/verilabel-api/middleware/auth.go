// Package middleware provides HTTP middleware for the VeriLabel API.
package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKey returns middleware requiring the X-API-Key header to match the
// configured key. An empty key disables authentication, which is the
// development default.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"invalid API key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
