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

// Package config loads and validates the runtime's deployment
// configuration: one YAML document plus an optional `.env` overlay,
// covering every tunable named across the component design (spec.md §6's
// external-interface configuration) — server bind address, the storage
// dialect/DSN, the backend adapter registry, the vector provider,
// retrieval weights, the LLM endpoint, turn-context budgets, graph limits,
// checkpoint strategy, GPU devices, and the audit writer.
package config

import (
	"fmt"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/adapter"
	"github.com/bestbox-ai/orchestrator/pkg/audit"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/gpu"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
	"github.com/bestbox-ai/orchestrator/pkg/store"
	"github.com/bestbox-ai/orchestrator/pkg/vector"
)

// ServerConfig tunes the HTTP surface (pkg/server).
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SetDefaults applies spec.md §5's request-timeout default.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 180 * time.Second
	}
}

// AuthConfig tunes the HTTP surface's bearer-token authentication
// (pkg/auth). When Enabled is false, requests skip validation entirely and
// model.UserContext is built from the X-User-Id/X-Org-Id headers instead —
// the zero-config path for local development and for deployments that
// authenticate at a gateway in front of this service.
type AuthConfig struct {
	Enabled         bool          `yaml:"enabled"`
	JWKSURL         string        `yaml:"jwks_url,omitempty"`
	Issuer          string        `yaml:"issuer,omitempty"`
	Audience        string        `yaml:"audience,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

// SetDefaults applies the JWKS cache refresh interval the teacher's own
// JWT validator uses.
func (c *AuthConfig) SetDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 15 * time.Minute
	}
}

// Validate checks the fields JWKS validation requires are present when auth
// is enabled.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("config: auth.jwks_url is required when auth.enabled is true")
	}
	if c.Issuer == "" {
		return fmt.Errorf("config: auth.issuer is required when auth.enabled is true")
	}
	return nil
}

// DatabaseConfig selects the pkg/store backend.
type DatabaseConfig struct {
	Dialect store.Dialect `yaml:"dialect"`
	DSN     string        `yaml:"dsn"`
}

// SetDefaults defaults to an embedded sqlite file, the zero-config path for
// local development (mirrors vector.ProviderMemory's role for the vector
// store).
func (c *DatabaseConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = store.DialectSQLite
	}
	if c.DSN == "" && c.Dialect == store.DialectSQLite {
		c.DSN = "bestboxd.db"
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("config: database.dsn is required for dialect %q", c.Dialect)
	}
	return nil
}

// AdapterEntry declares one backend adapter instance (spec.md §4.1: "a
// per-deployment configuration enumerates {domain → adapter_family,
// endpoint, auth_reference, allowlist}"). Kind selects the adapter family:
// "rest" wires adapter.RESTAdapter via adapter.New{ERP,CRM,ITOps,OA}Adapter
// by Domain; "demo" wires adapter.NewDemoAdapter from an inline fixture,
// for local development without a live backend.
type AdapterEntry struct {
	Kind       string            `yaml:"kind"`
	Name       string            `yaml:"name"`
	Domain     adapter.Domain    `yaml:"domain"`
	BaseURL    string            `yaml:"base_url,omitempty"`
	AuthEnvVar string            `yaml:"auth_env_var,omitempty"`
	Allowlist  []string          `yaml:"allowlist,omitempty"`
	Fixture    map[string]string `yaml:"fixture,omitempty"`
}

// Validate checks the fields required by Kind and Domain are present.
func (e AdapterEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("config: adapters[].name is required")
	}
	switch e.Domain {
	case adapter.DomainERP, adapter.DomainCRM, adapter.DomainIT, adapter.DomainOA:
	default:
		return fmt.Errorf("config: adapters[%q].domain %q is not one of erp, crm, it, oa", e.Name, e.Domain)
	}
	switch e.Kind {
	case "rest":
		if e.BaseURL == "" {
			return fmt.Errorf("config: adapters[%q].base_url is required for kind=rest", e.Name)
		}
	case "demo":
	default:
		return fmt.Errorf("config: adapters[%q].kind %q is not one of rest, demo", e.Name, e.Kind)
	}
	return nil
}

// PersonaEntry declares one specialist's system prompt and the subset of
// the (code-registered) tool catalog it may call. Tool handlers themselves
// are wired in Go at the composition root, not YAML — only the binding of
// agent → prompt → tool names is data (spec.md §9: explicit dependency
// injection, not runtime tool discovery).
type PersonaEntry struct {
	Agent        string   `yaml:"agent"`
	SystemPrompt string   `yaml:"system_prompt"`
	ToolNames    []string `yaml:"tool_names"`
}

// EmbedConfig points at the embeddings endpoint consumed by C3 (spec.md §6:
// "POST /embed with {texts} -> {vectors}; 1024-dim L2-normalized").
type EmbedConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// RerankConfig points at the reranker endpoint consumed by C3 (spec.md §6:
// "POST /rerank with {query, passages} -> {scores}"). Either may be left
// unset: C3 degrades gracefully per spec.md §4.3's edge-case policies
// (sparse-only on embeddings failure, fused-rank fallback on reranker
// failure), so a deployment without either endpoint still serves dense/
// sparse-less retrieval rather than failing to start.
type RerankConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// ObservabilityConfig tunes tracing/metrics export (pkg/observability).
type ObservabilityConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// SetDefaults names the service for trace/metric export even when
// observability is disabled, so turning it on later needs no other edit.
func (c *ObservabilityConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "bestboxd"
	}
}

// Config is the root configuration document, decoded from YAML with an
// env-var overlay (see env.go) and validated at startup (spec.md §4.1:
// "the registry is loaded once at startup; hot-reload is out of scope").
type Config struct {
	Server        ServerConfig          `yaml:"server"`
	Auth          AuthConfig            `yaml:"auth"`
	Database      DatabaseConfig        `yaml:"database"`
	Adapters      []AdapterEntry        `yaml:"adapters"`
	Personas      []PersonaEntry        `yaml:"personas"`
	Vector        vector.ProviderConfig `yaml:"vector"`
	Retriever     rag.Config            `yaml:"retriever"`
	Embed         EmbedConfig           `yaml:"embed"`
	Rerank        RerankConfig          `yaml:"rerank"`
	LexiconPath   string                `yaml:"lexicon_path"`
	LLM           llm.Config            `yaml:"llm"`
	ContextWindow contextwindow.Config  `yaml:"context_window"`
	Graph         graph.Config          `yaml:"graph"`
	Checkpoint    checkpoint.Config     `yaml:"checkpoint"`
	GPU           gpu.Config            `yaml:"gpu"`
	Audit         audit.Config          `yaml:"audit"`
	Observability ObservabilityConfig   `yaml:"observability"`
}

// SetDefaults fills in every component's own defaults. Each sub-config
// already owns its SetDefaults (built alongside that component); this just
// fans out to them so a loader never has to enumerate tuning knobs twice.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
	c.Database.SetDefaults()
	c.Vector.SetDefaults()
	c.Retriever.SetDefaults()
	c.LLM.SetDefaults()
	c.ContextWindow.SetDefaults()
	c.Graph.SetDefaults()
	c.Checkpoint.SetDefaults()
	c.GPU.SetDefaults()
	c.Audit.SetDefaults()
	c.Observability.SetDefaults()
	if c.LexiconPath == "" {
		c.LexiconPath = "config/lexicon.yaml"
	}
}

// Validate checks the document is usable, delegating to each component's
// own Validate where one exists and adding the cross-cutting checks no
// single component owns (adapter/persona entry shape).
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Vector.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.ContextWindow.Validate(); err != nil {
		return err
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return err
	}
	for _, a := range c.Adapters {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, p := range c.Personas {
		if p.Agent == "" {
			return fmt.Errorf("config: personas[].agent is required")
		}
	}
	return nil
}
