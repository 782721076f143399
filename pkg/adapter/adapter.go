// Package adapter implements the Backend Adapter Registry (C1): a uniform
// façade over heterogeneous ERP/CRM/IT-ops/office-automation backends with a
// demo fallback, loaded once at startup (spec.md §4.1).
package adapter

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/registry"
)

// Domain identifies the backend family a tool operation targets.
type Domain string

const (
	DomainERP Domain = "erp"
	DomainCRM Domain = "crm"
	DomainIT  Domain = "it"
	DomainOA  Domain = "oa"
)

// Record is a normalized, backend-family-independent result. Every adapter
// returns the same canonical schema so prompts do not change per deployment
// (spec.md §4.1).
type Record map[string]any

// Adapter is the capability set every backend family implements.
type Adapter interface {
	// Name identifies this adapter instance (e.g. "erp-rest", "demo").
	Name() string

	// Domain is the business domain this adapter serves.
	Domain() Domain

	// IsAvailable reports whether the backend is currently reachable.
	IsAvailable(ctx context.Context) bool

	// Operations lists the operation names this adapter declares support for.
	Operations() []string

	// Query executes operation with params and returns a normalized Record.
	//
	// Fails with apperr.KindBackendUnavailable when IsAvailable is false or a
	// transport error occurs, apperr.KindOperationUnsupported when operation
	// is not in Operations(), and apperr.KindBackendError on a remote error.
	Query(ctx context.Context, operation string, params map[string]any) (Record, error)
}

// Registry is the per-deployment collection of adapters, one per
// (domain, deployment) instance, shared across tools via dependency
// injection rather than a module-global (spec.md §9).
type Registry struct {
	byName   *registry.BaseRegistry[Adapter]
	byDomain map[Domain][]Adapter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   registry.New[Adapter](),
		byDomain: make(map[Domain][]Adapter),
	}
}

// Register adds adapter to the registry, indexed both by name and by domain.
func (r *Registry) Register(a Adapter) error {
	if err := r.byName.Register(a.Name(), a); err != nil {
		return err
	}
	r.byDomain[a.Domain()] = append(r.byDomain[a.Domain()], a)
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	return r.byName.Get(name)
}

// ForDomain returns the adapters registered for domain, in registration order
// within that domain. Deployments typically register exactly one adapter per
// domain; multiple entries let a demo fallback coexist with a real adapter.
func (r *Registry) ForDomain(domain Domain) []Adapter {
	return r.byDomain[domain]
}

// QueryDomain resolves the first available adapter for domain and executes
// operation against it. If no registered adapter for domain is available, it
// returns apperr.KindBackendUnavailable.
func (r *Registry) QueryDomain(ctx context.Context, domain Domain, operation string, params map[string]any) (Record, error) {
	adapters := r.ForDomain(domain)
	if len(adapters) == 0 {
		return nil, apperr.New(apperr.KindBackendUnavailable, "no adapter registered for domain %q", domain)
	}

	var lastErr error
	for _, a := range adapters {
		if !a.IsAvailable(ctx) {
			lastErr = apperr.New(apperr.KindBackendUnavailable, "adapter %q unavailable", a.Name())
			continue
		}
		return a.Query(ctx, operation, params)
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.KindBackendUnavailable, "no available adapter for domain %q", domain)
	}
	return nil, lastErr
}
