package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/bestbox-ai/orchestrator/pkg/config"
)

// JWTValidator validates bearer tokens against an external identity
// provider's JWKS, auto-fetching and caching the key set so signature
// verification never blocks on a live fetch per request.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator creates a validator that auto-fetches JWKS from the
// provider named in cfg. The JWKS is cached and refreshed at
// cfg.RefreshInterval to handle key rotation.
func NewJWTValidator(ctx context.Context, cfg config.AuthConfig) (*JWTValidator, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("auth: register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("auth: fetch jwks from %s: %w", cfg.JWKSURL, err)
	}
	return &JWTValidator{jwksURL: cfg.JWKSURL, cache: cache, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

// ValidateToken verifies tokenString's signature (against the cached JWKS),
// expiry, issuer and audience, and extracts Claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("auth: get jwks: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{Subject: token.Subject()}
	if orgID, ok := token.Get("org_id"); ok {
		if s, ok := orgID.(string); ok {
			claims.OrgID = s
		}
	} else if tenantID, ok := token.Get("tenant_id"); ok {
		if s, ok := tenantID.(string); ok {
			claims.OrgID = s
		}
	}
	if roles, ok := token.Get("roles"); ok {
		claims.Roles = toStringSlice(roles)
	}
	if perms, ok := token.Get("permissions"); ok {
		claims.Permissions = toStringSlice(perms)
	}
	return claims, nil
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
