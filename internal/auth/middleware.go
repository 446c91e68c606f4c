package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type claimsContextKey struct{}

// CurrentUser returns the authenticated token claims from the request
// context, if any.
func CurrentUser(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}

// WithClaims attaches token claims to a context. Exposed for tests and for
// internal callers acting on behalf of a user.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Middleware authenticates requests via a Bearer token or the X-API-KEY
// header and stores the claims in the request context. Requests without a
// valid token are rejected with 401.
func Middleware(secretKey []byte, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-API-KEY")
			if token == "" {
				bearer := r.Header.Get("Authorization")
				token = strings.TrimPrefix(bearer, "Bearer ")
				if token == bearer {
					token = ""
				}
			}

			if token == "" {
				unauthorized(w, "You are attempting to access an authenticated resource without providing authentication.")
				return
			}

			claims, err := ParseToken(token, secretKey)
			if err != nil {
				logger.Debugw("rejected api token", "err", err)
				unauthorized(w, "The provided authentication is not valid.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status_code": http.StatusUnauthorized,
		"message":     message,
	})
}
