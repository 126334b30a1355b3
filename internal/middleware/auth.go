package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/tableorder/api/internal/auth"
	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/enum"
)

type staffKey struct{}

// Authenticate admits requests carrying a valid staff access token.
// Customer endpoints never pass through here; they are scoped by table
// session instead.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg := bearerToken(r)
			if msg != "" {
				deny(w, http.StatusUnauthorized, msg)
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil || !enum.IsUserRole(claims.Role) {
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), staffKey{}, claims)))
		})
	}
}

// RequireRole narrows an authenticated route to the given staff roles.
func RequireRole(roles ...database.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				deny(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !slices.Contains(roles, database.UserRole(claims.Role)) {
				deny(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the staff claims set by Authenticate, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(staffKey{}).(*auth.Claims)
	return claims
}

func bearerToken(r *http.Request) (string, string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization format"
	}
	return token, ""
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
