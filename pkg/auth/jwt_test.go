package auth

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/config"
)

func TestNewJWTValidator(t *testing.T) {
	_, publicKey, err := generateRSAKeyPair()
	require.NoError(t, err)
	keyset, err := createJWKS(publicKey)
	require.NoError(t, err)
	server := newJWKSServer(t, keyset)

	tests := []struct {
		name      string
		jwksURL   string
		wantError bool
	}{
		{name: "valid_configuration", jwksURL: server.URL + "/.well-known/jwks.json"},
		{name: "invalid_jwks_url", jwksURL: "https://invalid-url.invalid/jwks.json", wantError: true},
		{name: "empty_jwks_url", jwksURL: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.AuthConfig{JWKSURL: tt.jwksURL, Issuer: "https://test-issuer.com", Audience: "test-audience"}
			cfg.SetDefaults()
			validator, err := NewJWTValidator(context.Background(), cfg)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, validator)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, validator)
			assert.Equal(t, tt.jwksURL, validator.jwksURL)
		})
	}
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	validator, privateKey, issuer, audience, _ := setupTestValidator(t)
	subject := "test-user-123"

	tests := []struct {
		name        string
		issuer      string
		audience    string
		claims      map[string]any
		wantError   bool
		checkClaims func(*testing.T, *Claims)
	}{
		{
			name:     "valid_token_with_org_and_permissions",
			issuer:   issuer,
			audience: audience,
			claims: map[string]any{
				"org_id":      "org-456",
				"roles":       []any{"admin"},
				"permissions": []any{"erp.read", "crm.write"},
			},
			checkClaims: func(t *testing.T, claims *Claims) {
				assert.Equal(t, subject, claims.Subject)
				assert.Equal(t, "org-456", claims.OrgID)
				assert.Equal(t, []string{"admin"}, claims.Roles)
				assert.Equal(t, []string{"erp.read", "crm.write"}, claims.Permissions)
			},
		},
		{
			name:     "falls_back_to_tenant_id",
			issuer:   issuer,
			audience: audience,
			claims:   map[string]any{"tenant_id": "tenant-789"},
			checkClaims: func(t *testing.T, claims *Claims) {
				assert.Equal(t, "tenant-789", claims.OrgID)
			},
		},
		{
			name:      "invalid_issuer",
			issuer:    "https://wrong-issuer.invalid",
			audience:  audience,
			wantError: true,
		},
		{
			name:      "invalid_audience",
			issuer:    issuer,
			audience:  "wrong-audience",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenString, err := createTestJWT(privateKey, tt.issuer, tt.audience, subject, tt.claims)
			require.NoError(t, err)

			claims, err := validator.ValidateToken(context.Background(), tokenString)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, claims)
			if tt.checkClaims != nil {
				tt.checkClaims(t, claims)
			}
		})
	}
}

func TestJWTValidator_ValidateToken_Expired(t *testing.T) {
	validator, privateKey, issuer, audience, _ := setupTestValidator(t)

	token := jwt.New()
	_ = token.Set(jwt.IssuerKey, issuer)
	_ = token.Set(jwt.AudienceKey, audience)
	_ = token.Set(jwt.SubjectKey, "test-user-123")
	_ = token.Set(jwt.IssuedAtKey, time.Now().Add(-2*time.Hour))
	_ = token.Set(jwt.ExpirationKey, time.Now().Add(-1*time.Hour))

	key, err := jwk.FromRaw(privateKey)
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)

	_, err = validator.ValidateToken(context.Background(), string(signed))
	assert.Error(t, err)
}

func TestJWTValidator_ValidateToken_Malformed(t *testing.T) {
	validator, _, _, _, _ := setupTestValidator(t)

	for _, tokenString := range []string{"", "invalid.jwt.format", "not-a-jwt-token"} {
		_, err := validator.ValidateToken(context.Background(), tokenString)
		assert.Error(t, err)
	}
}

func TestClaims_ToUserContext(t *testing.T) {
	claims := &Claims{Subject: "u1", OrgID: "org-1", Roles: []string{"admin"}, Permissions: []string{"erp.read"}}
	uc := claims.ToUserContext()
	assert.Equal(t, "u1", uc.UserID)
	assert.Equal(t, "org-1", uc.OrgID)
	assert.Equal(t, []string{"admin"}, uc.Roles)
	assert.True(t, uc.HasPermission("erp.read"))
}
