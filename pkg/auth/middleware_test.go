package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

func TestJWTValidator_HTTPMiddleware(t *testing.T) {
	validator, privateKey, issuer, audience, _ := setupTestValidator(t)

	var gotUserContext model.UserContext
	handler := validator.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserContext = UserContextFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid_token", func(t *testing.T) {
		token, err := createTestJWT(privateKey, issuer, audience, "user-1", map[string]any{
			"org_id":      "org-1",
			"permissions": []any{"erp.read"},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", gotUserContext.UserID)
		assert.Equal(t, "org-1", gotUserContext.OrgID)
		assert.True(t, gotUserContext.HasPermission("erp.read"))
	})

	t.Run("missing_authorization_header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing Authorization header")
	})

	t.Run("malformed_authorization_header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
		req.Header.Set("Authorization", "Basic somevalue")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid Authorization format")
	})

	t.Run("invalid_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
		req.Header.Set("Authorization", "Bearer not-a-real-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserContextFromRequest_FallsBackToHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1", nil)
	req.Header.Set("X-User-Id", "user-2")
	req.Header.Set("X-Org-Id", "org-2")

	uc := UserContextFromRequest(req)

	assert.Equal(t, "user-2", uc.UserID)
	assert.Equal(t, "org-2", uc.OrgID)
}

func TestClaimsFromContext_RoundTrip(t *testing.T) {
	claims := &Claims{Subject: "user-3"}
	ctx := ContextWithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), claims)

	got := ClaimsFromContext(ctx)

	require.NotNil(t, got)
	assert.Equal(t, "user-3", got.Subject)
}
