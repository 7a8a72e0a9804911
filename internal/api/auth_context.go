package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/loader"
	"github.com/chordseqapp/chordseq-server/internal/service"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the authenticated user ID.
const userIDKey ctxKey = "userID"

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return userID, nil
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// userIDFromContext returns the user ID without erroring; empty means
// anonymous.
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// authMiddleware returns a middleware that validates Bearer tokens and
// stores the user ID in context. A verified subject with no local account
// gets one created on the spot. If no token is present or it is invalid, the
// request continues anonymously; handlers use GetUserID to reject where
// authentication is required.
func authMiddleware(tokens *auth.TokenService, users *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccessToken(authHeader[7:])
			if err != nil {
				// Invalid token - continue without user (handler will reject
				// if auth required).
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.EnsureUser(r.Context(), claims)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := setUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loaderMiddleware attaches a fresh per-request loader set to the context.
// Must run after authMiddleware so the caller-reaction loader knows who is
// asking. Loaders memoize within one request and are never shared across
// requests.
func loaderMiddleware(store *sqlite.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loader.WithLoaders(r.Context(), loader.NewLoaders(store, userIDFromContext(r.Context())))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
