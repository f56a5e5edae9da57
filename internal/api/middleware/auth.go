package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/logs2metrics/l2m/internal/auth"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

// OwnerKey is the context key for the authenticated subject
const OwnerKey ContextKey = "owner"

// Auth validates bearer tokens signed with jwtSecret and stores the token
// subject as the request owner. An empty secret disables authentication.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}

			claims, err := auth.ParseClaims(tokenStr, jwtSecret)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			AddLogField(w, "owner", claims.Subject)
			ctx := context.WithValue(r.Context(), OwnerKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetOwner returns the authenticated subject, if any
func GetOwner(r *http.Request) (string, bool) {
	owner, ok := r.Context().Value(OwnerKey).(string)
	return owner, ok && owner != ""
}
