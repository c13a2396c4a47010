package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// authenticatedKey marks a request that presented a valid API key.
const authenticatedKey contextKey = "auth_api_key_ok"

// Middleware provides HTTP middleware enforcing API-key auth.
type Middleware struct {
	keys *Keychain
}

// NewMiddleware creates the auth middleware around a keychain.
func NewMiddleware(keys *Keychain) *Middleware {
	return &Middleware{keys: keys}
}

// RequireKey rejects requests without a valid API key with a 401. When the
// keychain is disabled (no keys configured) it passes everything through.
func (m *Middleware) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.keys.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := extractKey(r)
		if !m.keys.Validate(key) {
			writeAuthError(w)
			return
		}

		ctx := context.WithValue(r.Context(), authenticatedKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractKey reads the API key from the Authorization header (Bearer form)
// or, failing that, the X-API-Key header.
func extractKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
		return ""
	}
	return r.Header.Get("X-API-Key")
}

// Authenticated reports whether the request carried a valid API key. It is
// false when auth is disabled.
func Authenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(authenticatedKey).(bool)
	return ok
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"missing or invalid API key"}`))
}
