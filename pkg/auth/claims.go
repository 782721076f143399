// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth validates the bearer token on incoming HTTP requests and
// turns its claims into the model.UserContext every other component reads
// permissions from (spec.md §4.2, §6: "401 (auth), 403 (permission)").
//
// Configure authentication in the deployment YAML:
//
//	auth:
//	  enabled: true
//	  jwks_url: "https://auth.example.com/.well-known/jwks.json"
//	  issuer: "https://auth.example.com"
//	  audience: "bestbox-api"
package auth

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsContextKey is the context key for storing validated claims.
	ClaimsContextKey contextKey = "bestbox_auth_claims"
)

// Claims is the subset of a validated JWT this runtime cares about. Roles
// and org map onto model.UserContext; Permissions comes from a
// deployment-specific "permissions" claim listing the ToolSpec.PermissionTag
// values this caller may invoke (spec.md §4.2).
type Claims struct {
	// Subject is the unique identifier for the caller (sub claim).
	Subject string `json:"sub"`

	// OrgID scopes the caller to a tenant (tenant_id/org_id claim).
	OrgID string `json:"org_id,omitempty"`

	// Roles lists the caller's roles, carried through but not interpreted
	// by this runtime beyond exposing it on UserContext.
	Roles []string `json:"roles,omitempty"`

	// Permissions lists the tool permission tags this caller holds.
	Permissions []string `json:"permissions,omitempty"`
}

// ToUserContext converts validated claims into the UserContext threaded
// through the graph runtime and tool catalog.
func (c *Claims) ToUserContext() model.UserContext {
	if c == nil {
		return model.UserContext{}
	}
	return model.UserContext{
		UserID:      c.Subject,
		OrgID:       c.OrgID,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
}

// ClaimsFromContext extracts claims from a context.
// Returns nil if no claims are present.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a new context with the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
