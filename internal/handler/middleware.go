package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionAuthMiddleware validates Bearer tokens, loads the backing
// session and injects it into the request context. The session carries
// the upstream bearer token, so everything past this middleware can
// call the DCarbon API on the user's behalf.
func SessionAuthMiddleware(sessions *service.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			session, err := sessions.Resolve(r.Context(), parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the authenticated session from context.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey).(*domain.Session)
	return s
}

// requireUserMatch rejects requests whose path user id differs from the
// session user. The BFF never proxies one user's token for another's
// resources.
func requireUserMatch(w http.ResponseWriter, r *http.Request, pathUserID string, logger *zap.Logger) *domain.Session {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "no session")
		return nil
	}
	if pathUserID != "" && pathUserID != session.UserID {
		logger.Warn("user id mismatch",
			zap.String("path_user", pathUserID),
			zap.String("session_user", session.UserID),
		)
		writeError(w, http.StatusForbidden, "forbidden: resource belongs to another user")
		return nil
	}
	return session
}
