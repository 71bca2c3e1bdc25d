package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/miktsoan/core/internal/domain"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
)

// UserIDFromContext extracts the authenticated user ID from the request
// context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext extracts the authenticated role from the request context.
func RoleFromContext(ctx context.Context) domain.Role {
	if v, ok := ctx.Value(roleKey).(domain.Role); ok {
		return v
	}
	return ""
}

// Middleware validates the bearer session token and injects the bound
// identity into the request context. The token is trusted as issued; the
// challenge is not re-verified.
func Middleware(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			userID, role, err := tokens.Parse(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid session token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
