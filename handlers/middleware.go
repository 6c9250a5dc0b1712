package handlers

import (
	"context"
	"net/http"
	"strings"

	"storefront/models"
)

type ctxKey int

const sessionKey ctxKey = iota

// TokenParser verifies access tokens.
type TokenParser interface {
	ParseAccessToken(token string) (*models.Claims, error)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// Browsers cannot set headers on a websocket handshake.
	return r.URL.Query().Get("access_token")
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's session in the request context.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
				return
			}
			claims, err := tokens.ParseAccessToken(tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token", nil)
				return
			}
			session := &models.AuthSession{
				AccessToken: tokenStr,
				User: models.User{
					ID:       claims.UserID,
					Email:    claims.Email,
					FullName: claims.FullName,
				},
			}
			if claims.ExpiresAt != nil {
				session.ExpiresAt = claims.ExpiresAt.Time
			}
			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets through only callers whose email isAdmin accepts. It must
// run after Authenticate.
func RequireAdmin(isAdmin func(email string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFrom(r)
			if session == nil || !isAdmin(session.User.Email) {
				writeError(w, http.StatusForbidden, "forbidden", "admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFrom(r *http.Request) *models.AuthSession {
	session, _ := r.Context().Value(sessionKey).(*models.AuthSession)
	return session
}
