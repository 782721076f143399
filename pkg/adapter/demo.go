package adapter

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// DemoAdapter is an always-available, in-memory adapter used when no real
// backend is configured for a domain — local development and the sample
// deployment both run entirely on demo adapters (spec.md §4.1).
type DemoAdapter struct {
	name    string
	domain  Domain
	fixture map[string]Record
}

// NewDemoAdapter builds a DemoAdapter for domain that returns fixture[op]
// for each supported operation.
func NewDemoAdapter(name string, domain Domain, fixture map[string]Record) *DemoAdapter {
	return &DemoAdapter{name: name, domain: domain, fixture: fixture}
}

func (a *DemoAdapter) Name() string                     { return a.name }
func (a *DemoAdapter) Domain() Domain                   { return a.domain }
func (a *DemoAdapter) IsAvailable(context.Context) bool { return true }

func (a *DemoAdapter) Operations() []string {
	ops := make([]string, 0, len(a.fixture))
	for op := range a.fixture {
		ops = append(ops, op)
	}
	return ops
}

// Query returns the fixture registered for operation, unaffected by params —
// the demo adapter exists to exercise the routing and response-shaping code
// paths, not to simulate backend business logic.
func (a *DemoAdapter) Query(_ context.Context, operation string, _ map[string]any) (Record, error) {
	rec, ok := a.fixture[operation]
	if !ok {
		return nil, apperr.New(apperr.KindOperationUnsupported, "adapter %q has no fixture for operation %q", a.name, operation)
	}
	return rec, nil
}

// DefaultDemoFixtures returns a starter fixture set for each domain, enough
// to answer the common tool-calling demo scenarios without any backend
// configured.
func DefaultDemoFixtures() map[Domain]map[string]Record {
	return map[Domain]map[string]Record{
		DomainERP: {
			"get_invoice_status": {"invoice_id": "INV-1001", "status": "paid", "amount": 4250.00},
			"list_open_orders":   {"orders": []any{"SO-2001", "SO-2002"}},
		},
		DomainCRM: {
			"get_account":   {"account_id": "ACC-5001", "name": "Acme Corp", "tier": "enterprise"},
			"list_contacts": {"contacts": []any{"jane@acme.example", "bob@acme.example"}},
		},
		DomainIT: {
			"get_ticket_status": {"ticket_id": "ITOPS-301", "status": "in_progress"},
			"create_ticket":     {"ticket_id": "ITOPS-999", "status": "created"},
		},
		DomainOA: {
			"get_calendar_availability": {"slots": []any{"2026-08-03T14:00:00Z", "2026-08-03T15:00:00Z"}},
			"send_message":              {"message_id": "MSG-7001", "status": "sent"},
		},
	}
}
