package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewTokenValidator("test-secret")

	token, err := v.Generate("messaging-collab", []string{"acme"}, []string{"replies"})
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "messaging-collab", claims.Subject)
	assert.True(t, claims.AllowsTenant("acme"))
	assert.False(t, claims.AllowsTenant("globex"))
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewTokenValidator("secret-a").Generate("x", nil, nil)
	require.NoError(t, err)

	_, err = NewTokenValidator("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestAllowsTenant_EmptyMeansAll(t *testing.T) {
	claims := &Claims{}
	assert.True(t, claims.AllowsTenant("anyone"))
}

func TestRequireAuth(t *testing.T) {
	v := NewTokenValidator("test-secret")
	m := NewMiddleware(v)

	var gotSubject string
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := v.Generate("collab", nil, nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/replies", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "collab", gotSubject)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/replies", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/replies", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	v := NewTokenValidator("test-secret")
	m := NewMiddleware(v)

	handler := m.RequireRole("admin")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("with role", func(t *testing.T) {
		token, err := v.Generate("op", nil, []string{"admin"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("without role", func(t *testing.T) {
		token, err := v.Generate("op", nil, []string{"replies"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
