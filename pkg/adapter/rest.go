package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/httpx"
)

// RESTConfig configures a generic JSON/REST backend adapter. One RESTConfig
// instance backs each of the erp-rest/crm-rest/itops-rest/oa-rest families —
// they differ only in domain and the operation allowlist they expose.
type RESTConfig struct {
	// Name is the adapter instance name, e.g. "erp-rest".
	Name string

	// Domain is the business domain this instance serves.
	Domain Domain

	// BaseURL is the backend's API root, e.g. "https://erp.internal/api".
	BaseURL string

	// AuthEnvVar names the environment variable holding the bearer token.
	// Secrets are referenced by env var name only, never inline (spec.md §6).
	AuthEnvVar string

	// Allowlist restricts which operations this instance will execute.
	// An empty allowlist means all operations below are permitted.
	Allowlist []string

	// Client is the retrying HTTP client to use. If nil, a default one is built.
	Client *httpx.Client
}

// RESTAdapter implements Adapter over a generic JSON/REST backend.
// Each declared operation maps to one HTTP route: GET for read, POST for write.
type RESTAdapter struct {
	cfg        RESTConfig
	client     *httpx.Client
	operations map[string]operationRoute
}

type operationRoute struct {
	method string
	path   string // may contain {param} placeholders filled from params
}

// newRESTAdapter builds a RESTAdapter exposing the given operation→route map.
func newRESTAdapter(cfg RESTConfig, routes map[string]operationRoute) *RESTAdapter {
	client := cfg.Client
	if client == nil {
		client = httpx.New()
	}

	ops := routes
	if len(cfg.Allowlist) > 0 {
		allowed := make(map[string]bool, len(cfg.Allowlist))
		for _, op := range cfg.Allowlist {
			allowed[op] = true
		}
		ops = make(map[string]operationRoute, len(cfg.Allowlist))
		for op, route := range routes {
			if allowed[op] {
				ops[op] = route
			}
		}
	}

	return &RESTAdapter{
		cfg:        cfg,
		client:     client,
		operations: ops,
	}
}

func (a *RESTAdapter) Name() string   { return a.cfg.Name }
func (a *RESTAdapter) Domain() Domain { return a.cfg.Domain }

func (a *RESTAdapter) Operations() []string {
	names := make([]string, 0, len(a.operations))
	for name := range a.operations {
		names = append(names, name)
	}
	return names
}

// IsAvailable performs a lightweight health probe against the backend root.
// Results are not cached: callers invoke this once per Query via
// Registry.QueryDomain, so a flapping backend is observed promptly.
func (a *RESTAdapter) IsAvailable(ctx context.Context) bool {
	if a.cfg.BaseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	a.applyAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (a *RESTAdapter) applyAuth(req *http.Request) {
	if a.cfg.AuthEnvVar == "" {
		return
	}
	if token := os.Getenv(a.cfg.AuthEnvVar); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Query executes operation against the backend and normalizes the response
// into a Record, independent of backend family (spec.md §4.1).
func (a *RESTAdapter) Query(ctx context.Context, operation string, params map[string]any) (Record, error) {
	route, ok := a.operations[operation]
	if !ok {
		return nil, apperr.New(apperr.KindOperationUnsupported, "adapter %q does not support operation %q", a.cfg.Name, operation)
	}

	path := expandPath(route.path, params)
	url := strings.TrimRight(a.cfg.BaseURL, "/") + path

	var body []byte
	var err error
	if route.method != http.MethodGet {
		body, err = json.Marshal(params)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBackendError, err, "marshal request body")
		}
	}

	req, err := httpx.NewJSONRequest(ctx, route.method, url, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackendUnavailable, err, "build request")
	}
	a.applyAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackendUnavailable, err, "backend %q unreachable", a.cfg.Name)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if decErr := json.NewDecoder(resp.Body).Decode(&payload); decErr != nil && resp.StatusCode < 300 {
		return nil, apperr.Wrap(apperr.KindBackendError, decErr, "decode response")
	}

	if resp.StatusCode >= 400 {
		code := fmt.Sprintf("http_%d", resp.StatusCode)
		message := "backend error"
		if msg, ok := payload["message"].(string); ok {
			message = msg
		}
		return nil, apperr.BackendError(code, message)
	}

	return Record(payload), nil
}

// NewERPAdapter builds the "erp-rest" family adapter: invoice and order
// operations against an ERP system's JSON API (spec.md §4.1).
func NewERPAdapter(cfg RESTConfig) *RESTAdapter {
	cfg.Domain = DomainERP
	return newRESTAdapter(cfg, map[string]operationRoute{
		"get_invoice_status":    {method: http.MethodGet, path: "/invoices/{invoice_id}"},
		"list_open_orders":      {method: http.MethodGet, path: "/orders?status=open"},
		"create_purchase_order": {method: http.MethodPost, path: "/purchase-orders"},
	})
}

// NewCRMAdapter builds the "crm-rest" family adapter: account, contact, and
// opportunity operations against a CRM system's JSON API.
func NewCRMAdapter(cfg RESTConfig) *RESTAdapter {
	cfg.Domain = DomainCRM
	return newRESTAdapter(cfg, map[string]operationRoute{
		"get_account":        {method: http.MethodGet, path: "/accounts/{account_id}"},
		"list_contacts":      {method: http.MethodGet, path: "/accounts/{account_id}/contacts"},
		"update_opportunity": {method: http.MethodPost, path: "/opportunities/{opportunity_id}"},
	})
}

// NewITOpsAdapter builds the "itops-rest" family adapter: ticket lifecycle
// operations against an IT service-management system's JSON API.
func NewITOpsAdapter(cfg RESTConfig) *RESTAdapter {
	cfg.Domain = DomainIT
	return newRESTAdapter(cfg, map[string]operationRoute{
		"get_ticket_status": {method: http.MethodGet, path: "/tickets/{ticket_id}"},
		"create_ticket":     {method: http.MethodPost, path: "/tickets"},
		"close_ticket":      {method: http.MethodPost, path: "/tickets/{ticket_id}/close"},
	})
}

// NewOAAdapter builds the "oa-rest" family adapter: calendar and messaging
// operations against an office-automation system's JSON API.
func NewOAAdapter(cfg RESTConfig) *RESTAdapter {
	cfg.Domain = DomainOA
	return newRESTAdapter(cfg, map[string]operationRoute{
		"get_calendar_availability": {method: http.MethodGet, path: "/calendar/availability"},
		"send_message":              {method: http.MethodPost, path: "/messages"},
	})
}

// expandPath substitutes {name} placeholders in path with string-formatted
// values from params. Unmatched placeholders are left as-is.
func expandPath(path string, params map[string]any) string {
	out := path
	for k, v := range params {
		placeholder := "{" + k + "}"
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", v))
		}
	}
	return out
}
