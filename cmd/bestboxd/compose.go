// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

package main

import (
	"context"
	"fmt"

	"github.com/bestbox-ai/orchestrator/pkg/adapter"
	"github.com/bestbox-ai/orchestrator/pkg/config"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/httpx"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
	"github.com/bestbox-ai/orchestrator/pkg/store"
	"github.com/bestbox-ai/orchestrator/pkg/tool"
	"github.com/bestbox-ai/orchestrator/pkg/vector"
)

// buildAdapterRegistry wires one Backend Adapter Registry entry (C1,
// spec.md §4.1) per config.AdapterEntry. "rest" entries talk to a live
// backend; "demo" entries serve an in-memory fixture for local development
// and the sample deployment.
func buildAdapterRegistry(entries []config.AdapterEntry, sharedClient *httpx.Client) (*adapter.Registry, error) {
	reg := adapter.NewRegistry()
	defaults := adapter.DefaultDemoFixtures()

	for _, e := range entries {
		var a adapter.Adapter
		switch e.Kind {
		case "rest":
			restCfg := adapter.RESTConfig{
				Name:       e.Name,
				BaseURL:    e.BaseURL,
				AuthEnvVar: e.AuthEnvVar,
				Allowlist:  e.Allowlist,
				Client:     sharedClient,
			}
			switch e.Domain {
			case adapter.DomainERP:
				a = adapter.NewERPAdapter(restCfg)
			case adapter.DomainCRM:
				a = adapter.NewCRMAdapter(restCfg)
			case adapter.DomainIT:
				a = adapter.NewITOpsAdapter(restCfg)
			case adapter.DomainOA:
				a = adapter.NewOAAdapter(restCfg)
			default:
				return nil, fmt.Errorf("compose: adapter %q: unknown domain %q", e.Name, e.Domain)
			}
		case "demo":
			fixture := defaults[e.Domain]
			if len(e.Fixture) > 0 {
				fixture = make(map[string]adapter.Record, len(e.Fixture))
				for op, val := range e.Fixture {
					fixture[op] = adapter.Record{"value": val}
				}
			}
			a = adapter.NewDemoAdapter(e.Name, e.Domain, fixture)
		default:
			return nil, fmt.Errorf("compose: adapter %q: unknown kind %q", e.Name, e.Kind)
		}

		if err := reg.Register(a); err != nil {
			return nil, fmt.Errorf("compose: register adapter %q: %w", e.Name, err)
		}
	}
	return reg, nil
}

// toolOperation declares one catalog entry: the ToolSpec the LLM sees, and
// the (domain, adapter operation) it dispatches to (spec.md §4.2). Naming
// follows the `<domain>_<operation>` convention; spec.md's own worked
// examples are inconsistent here ("erp.count_purchase_orders" vs.
// "search_mold_kb"), so this is a house convention, not a spec requirement.
type toolOperation struct {
	name          string
	description   string
	domain        adapter.Domain
	operation     string
	permissionTag string
	sideEffect    model.SideEffectClass
}

// defaultToolOperations is the fixed catalog of adapter-backed tools this
// deployment exposes, one per REST operation the four adapter families
// declare (adapter/rest.go).
func defaultToolOperations() []toolOperation {
	return []toolOperation{
		{"erp_get_invoice_status", "Look up an invoice's payment status by invoice_id.", adapter.DomainERP, "get_invoice_status", "erp:read", model.SideEffectRead},
		{"erp_list_open_orders", "List purchase orders currently open.", adapter.DomainERP, "list_open_orders", "erp:read", model.SideEffectRead},
		{"erp_create_purchase_order", "Create a new purchase order.", adapter.DomainERP, "create_purchase_order", "erp:write", model.SideEffectWrite},

		{"crm_get_account", "Look up a CRM account by account_id.", adapter.DomainCRM, "get_account", "crm:read", model.SideEffectRead},
		{"crm_list_contacts", "List contacts for a CRM account.", adapter.DomainCRM, "list_contacts", "crm:read", model.SideEffectRead},
		{"crm_update_opportunity", "Update a CRM opportunity's fields.", adapter.DomainCRM, "update_opportunity", "crm:write", model.SideEffectWrite},

		{"it_get_ticket_status", "Look up an IT ticket's status by ticket_id.", adapter.DomainIT, "get_ticket_status", "it:read", model.SideEffectRead},
		{"it_create_ticket", "Open a new IT service ticket.", adapter.DomainIT, "create_ticket", "it:write", model.SideEffectWrite},
		{"it_close_ticket", "Close an existing IT service ticket.", adapter.DomainIT, "close_ticket", "it:write", model.SideEffectWrite},

		{"oa_get_calendar_availability", "Check calendar availability for a time range.", adapter.DomainOA, "get_calendar_availability", "oa:read", model.SideEffectRead},
		{"oa_send_message", "Send a message through the office-automation backend.", adapter.DomainOA, "send_message", "oa:write", model.SideEffectWrite},
	}
}

// buildToolCatalog wires C2: one Tool per defaultToolOperations entry
// dispatching through reg, plus the mold specialist's knowledge-search tool
// dispatching through retriever (spec.md worked example 2: "tool
// search_mold_kb({query}) invoked").
func buildToolCatalog(reg *adapter.Registry, retriever *rag.Retriever) (*tool.Catalog, error) {
	catalog := tool.NewCatalog()

	for _, op := range defaultToolOperations() {
		spec := model.ToolSpec{
			Name:            op.name,
			Description:     op.description,
			PermissionTag:   op.permissionTag,
			SideEffectClass: op.sideEffect,
		}
		if err := catalog.Register(tool.FromAdapterOperation(spec, reg, op.domain, op.operation)); err != nil {
			return nil, fmt.Errorf("compose: register tool %q: %w", op.name, err)
		}
	}

	searchSpec := model.ToolSpec{
		Name:            "search_mold_kb",
		Description:     "Search the injection-mold defect troubleshooting knowledge base.",
		PermissionTag:   "mold:read",
		SideEffectClass: model.SideEffectRead,
	}
	if err := catalog.Register(tool.FromRetriever(searchSpec, retriever, "mold")); err != nil {
		return nil, fmt.Errorf("compose: register tool %q: %w", searchSpec.Name, err)
	}

	return catalog, nil
}

// buildPersonas converts config-declared persona entries into the explicit
// dependency-injected PersonaSet the graph runtime requires (spec.md §9:
// "shared adapter instances... passed explicitly").
func buildPersonas(entries []config.PersonaEntry) (graph.PersonaSet, error) {
	personas := make(graph.PersonaSet, len(entries))
	for _, e := range entries {
		agent := model.AgentName(e.Agent)
		if !model.IsSpecialist(agent) {
			return nil, fmt.Errorf("compose: persona %q is not one of the enumerated specialists", e.Agent)
		}
		personas[agent] = graph.Persona{
			Agent:        agent,
			SystemPrompt: e.SystemPrompt,
			ToolNames:    e.ToolNames,
		}
	}
	for _, agent := range model.SpecialistAgents {
		if _, ok := personas[agent]; !ok {
			return nil, fmt.Errorf("compose: no persona configured for specialist %q", agent)
		}
	}
	return personas, nil
}

// defaultHTTPClient builds the shared retrying client every adapter and
// external collaborator uses (spec.md §6, §9: "one retrying HTTP client").
func defaultHTTPClient() *httpx.Client {
	return httpx.New()
}

// buildLexicon loads the sparse-match lexicon C3's BM25 pass scores against
// (spec.md §4.3 step 1). A missing path falls back to the built-in mold
// defect lexicon rather than failing startup, since the lexicon only
// sharpens sparse recall and an empty catalog still leaves dense search and
// structured fusion functional.
func buildLexicon(path string) (*rag.Catalog, error) {
	if path == "" {
		return rag.NewCatalog(rag.DefaultMoldLexicon()), nil
	}
	catalog, err := rag.LoadCatalog(path)
	if err != nil {
		return rag.NewCatalog(rag.DefaultMoldLexicon()), nil
	}
	return catalog, nil
}

// buildRetriever wires C3: the vector provider, the optional embeddings and
// reranker HTTP clients (config.EmbedConfig/RerankConfig may each be left
// unset, per their doc comments), and the structured-query fusion catalog
// sharing the runtime's store connection.
func buildRetriever(cfg *config.Config, st *store.Store, sharedClient *httpx.Client, lexicon *rag.Catalog) (*rag.Retriever, error) {
	provider, err := vector.NewProvider(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("vector provider: %w", err)
	}

	var embed rag.EmbedClient
	if cfg.Embed.BaseURL != "" {
		embed = rag.NewHTTPEmbedClient(rag.HTTPEmbedConfig{
			BaseURL: cfg.Embed.BaseURL,
			Model:   cfg.Embed.Model,
			APIKey:  config.ResolveSecret(cfg.Embed.APIKeyEnv),
			Client:  sharedClient,
		})
	}

	var rerank rag.RerankClient
	if cfg.Rerank.BaseURL != "" {
		rerank = rag.NewHTTPRerankClient(rag.HTTPRerankConfig{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  config.ResolveSecret(cfg.Rerank.APIKeyEnv),
			Client:  sharedClient,
		})
	}

	structured := rag.NewStructuredCatalog(st)
	if err := structured.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("structured catalog: %w", err)
	}

	return rag.New(cfg.Retriever, provider, embed, rerank, lexicon, structured), nil
}
