package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Validator verifies a bearer token.
type Validator interface {
	Validate(token string) (*Principal, error)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole creates middleware that admits requests carrying a valid
// bearer token with the given role. The principal is stored in the request
// context.
func RequireRole(v Validator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			p, err := v.Validate(token)
			if err != nil {
				slog.Debug("auth: rejected token", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if role != "" && !p.HasRole(role) {
				writeError(w, http.StatusForbidden, role+" role required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Verify interface compliance.
var _ Validator = (*TokenService)(nil)
