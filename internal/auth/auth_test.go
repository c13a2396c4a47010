package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestKeychainValidate(t *testing.T) {
	keys := NewKeychain([]string{testHash(t, "alpha"), testHash(t, "beta")})

	assert.True(t, keys.Enabled())
	assert.True(t, keys.Validate("alpha"))
	assert.True(t, keys.Validate("beta"))
	assert.False(t, keys.Validate("gamma"))
	assert.False(t, keys.Validate(""))
}

func TestKeychainDisabled(t *testing.T) {
	keys := NewKeychain(nil)
	assert.False(t, keys.Enabled())
	assert.False(t, keys.Validate("anything"))

	keys = NewKeychain([]string{""})
	assert.False(t, keys.Enabled())
}

func TestHashKeyRoundTrip(t *testing.T) {
	hash, err := HashKey("secret-key")
	require.NoError(t, err)

	keys := NewKeychain([]string{hash})
	assert.True(t, keys.Validate("secret-key"))
	assert.False(t, keys.Validate("wrong"))

	_, err = HashKey("")
	require.Error(t, err)
}

func TestRequireKey(t *testing.T) {
	mw := NewMiddleware(NewKeychain([]string{testHash(t, "alpha")}))

	var authed bool
	handler := mw.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed = Authenticated(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No key
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bad key
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearer key
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer alpha")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, authed)

	// X-API-Key header
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "alpha")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireKeyDisabledPassesThrough(t *testing.T) {
	mw := NewMiddleware(NewKeychain(nil))

	handler := mw.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
