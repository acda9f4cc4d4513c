package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"groupchat/internal/auth"

	"github.com/rs/zerolog/log"
)

type contextKey string

const UserIDKey contextKey = "user_id"

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// tokenFrom reads a bearer token from the Authorization header, falling back
// to the "token" query parameter since browsers cannot set headers on a
// websocket upgrade.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// RequireToken rejects requests without a valid token and stores the token's
// user id in the request context. With an empty key it lets everything
// through.
func RequireToken(key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(key) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFrom(r)
			if raw == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(key, raw)
			if err != nil {
				log.Warn().Str("component", "auth").Str("ip", getIP(r)).Err(err).Msg("invalid token")
				http.Error(w, "Session expired or invalid", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom returns the authenticated user id, or "" when the request was
// not authenticated.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
