package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dealspot/dealspot-api/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const (
	sessionIDKey contextKey = "sessionID"
	userIDKey    contextKey = "userID"
)

// Auth validates Bearer tokens and injects the session ID into the
// request context. Requests without a valid session are rejected.
func Auth(sessions *session.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			user, sid, err := sessions.Authenticate(token)
			if err != nil {
				logger.Warn("auth: invalid or expired session",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sid)
			ctx = context.WithValue(ctx, userIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves a session if a valid token is present but lets
// anonymous requests through. Used on endpoints that accept both.
func OptionalAuth(sessions *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if user, sid, err := sessions.Authenticate(token); err == nil {
					ctx := context.WithValue(r.Context(), sessionIDKey, sid)
					ctx = context.WithValue(ctx, userIDKey, user.ID)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SessionIDFromContext extracts the session ID injected by Auth.
// Empty for anonymous requests.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
