package auth

import (
	"context"
	"errors"
	"net/http"

	"courier/internal/handler/http/respond"
)

type ctxKey string

const ctxClaims ctxKey = "claims"

// ClaimsFromContext returns the verified claims stored by Authz.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(ctxClaims).(Claims)
	return claims, ok
}

// WithClaims returns a context carrying verified claims. Embedders that
// authenticate out of band can use it to call handlers directly.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, ctxClaims, claims)
}

// Authz requires a valid bearer token on every request, for all methods, and
// stores its claims on the context for the handlers downstream.
func Authz(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				RecordAuthRequest("failure")
				respond.SafeError(w, http.StatusUnauthorized, err)
				return
			}

			RecordAuthRequest("success")
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// AdminOnly rejects callers whose token lacks the admin role. It must run
// inside Authz.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.Role != RoleAdmin {
			RecordForbidden(r.Method)
			respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
