package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pledgewatch/internal/platform/token"
)

// RequireOpsAuth guards the trigger surface. Two credentials are accepted:
// the static ops token (compared against its bcrypt hash from config) via
// X-Ops-Token, or an HS256 service JWT via Authorization: Bearer, which is
// how the run scheduler authenticates.
func RequireOpsAuth(opsTokenHash string, tokens *token.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opsTokenHash != "" {
				if t := r.Header.Get("X-Ops-Token"); t != "" {
					if bcrypt.CompareHashAndPassword([]byte(opsTokenHash), []byte(t)) == nil {
						next.ServeHTTP(w, r)
						return
					}
					logger.WarnContext(r.Context(), "ops token mismatch",
						"client_ip", GetClientIP(r.Context()),
						"user_agent", GetUserAgent(r.Context()),
					)
					unauthorized(w)
					return
				}
			}

			if tokens != nil {
				if bearer := bearerToken(r); bearer != "" {
					claims, err := tokens.Validate(bearer)
					if err == nil {
						next.ServeHTTP(w, r.WithContext(token.WithSubject(r.Context(), claims.Subject)))
						return
					}
					logger.WarnContext(r.Context(), "service token rejected",
						"client_ip", GetClientIP(r.Context()),
						"error", err,
					)
				}
			}

			unauthorized(w)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"ops credentials required"}`))
}
