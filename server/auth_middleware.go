package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyMiddleware enforces the X-Api-Key header against the configured
// bcrypt hash. With no hash configured the check is disabled.
func (s *Server) APIKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := s.config.GetAPIKeyHash()
		if hash == "" {
			next(w, r)
			return
		}

		key := r.Header.Get("X-Api-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next(w, r)
	}
}

// BearerAuthMiddleware verifies Authorization bearer tokens against the
// configured OIDC issuer. With no issuer configured the check is disabled.
func (s *Server) BearerAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		rawToken := strings.TrimPrefix(authHeader, "Bearer ")
		if rawToken == authHeader {
			writeError(w, http.StatusUnauthorized, "malformed Authorization header")
			return
		}

		if _, err := s.verifier.Verify(r.Context(), rawToken); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next(w, r)
	}
}
