package graph

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
)

// routerPersona is the fixed system prompt for the router's structured
// routing call. It is intentionally not a Persona in PersonaSet: the router
// is not a specialist and carries no tools.
const routerPersona = "You are a routing function for a multi-domain support assistant. " +
	"Given the user's request, choose exactly one specialist: " +
	"erp (purchase orders, invoices, inventory), " +
	"crm (customers, leads, opportunities), " +
	"it (tickets, assets, access requests), " +
	"oa (leave requests, expenses, approvals), " +
	"mold (injection-mold defect troubleshooting knowledge base). " +
	`Respond with only {"next": "<agent>"} and nothing else — no explanation, no markdown.`

const routerRetryInstruction = `Your previous reply could not be parsed. Respond with only ` +
	`{"next": "<agent>"} where <agent> is one of erp, crm, it, oa, mold.`

// Router implements spec.md §4.6's supervisor decision: a low-temperature
// structured call constrained to the enumerated specialist set, with a
// deterministic fallback when the model can't produce parseable JSON twice
// in a row. Callers should construct the llm.Client passed here with a low
// (near-zero) Config.Temperature — routing is a classification, not
// open-ended generation.
type Router struct {
	client   llm.Client
	lexicon  *rag.Catalog
	fallback model.AgentName
}

// NewRouter builds a Router. lexicon may be nil (no domain falls back to
// mold on parse failure). fallback is the generic specialist used when the
// query matches no domain lexicon term; spec.md §4.6 leaves it unnamed, so
// this runtime defaults to erp as the broadest-coverage domain.
func NewRouter(client llm.Client, lexicon *rag.Catalog) *Router {
	if lexicon == nil {
		lexicon = rag.NewCatalog()
	}
	return &Router{client: client, lexicon: lexicon, fallback: model.AgentERP}
}

type routerResponse struct {
	Next string `json:"next"`
}

// Route decides the specialist for query. On two consecutive unparseable
// responses it applies spec.md §4.6's fallback rule: mold if the query
// matched a domain-lexicon term, else the generic fallback.
func (r *Router) Route(ctx context.Context, query string, history []model.Message) (model.AgentName, error) {
	prompt := r.buildPrompt(query, history)

	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.client.Generate(ctx, prompt, nil)
		if err != nil {
			return "", err
		}
		if next, ok := parseRouterResponse(res.Text); ok {
			return next, nil
		}
		prompt = append(prompt, model.Message{Role: model.RoleAssistant, Content: res.Text},
			model.Message{Role: model.RoleSystem, Content: routerRetryInstruction})
	}

	if r.lexicon.Matches(string(model.AgentMold), query) {
		return model.AgentMold, nil
	}
	return r.fallback, nil
}

func (r *Router) buildPrompt(query string, history []model.Message) []model.Message {
	msgs := make([]model.Message, 0, len(history)+2)
	msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: routerPersona})
	msgs = append(msgs, history...)
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: query})
	return msgs
}

// parseRouterResponse extracts {"next": "..."} from text, tolerating
// leading/trailing prose a quantized model might still emit despite the
// instruction to answer with JSON only.
func parseRouterResponse(text string) (model.AgentName, bool) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	var resp routerResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return "", false
	}
	agent := model.AgentName(strings.ToLower(strings.TrimSpace(resp.Next)))
	if !model.IsSpecialist(agent) {
		return "", false
	}
	return agent, true
}
