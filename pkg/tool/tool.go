// Package tool implements the Tool Catalog (C2): the registry of callable
// tools a specialist agent may invoke, with permission-tag enforcement and
// the approval interrupt for write-class operations (spec.md §4.2).
//
// The interface hierarchy is intentionally flat compared to a general
// tool-calling framework — every tool here ultimately bottoms out in a
// backend adapter query (pkg/adapter) or the retriever (pkg/rag), so a
// single synchronous Call is enough; there is no streaming or long-running
// tool class in this runtime.
package tool

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// Handler executes a tool call against its backend and returns the raw
// result payload to be JSON-encoded into the envelope.
type Handler func(ctx context.Context, uc model.UserContext, args map[string]any) (map[string]any, error)

// Tool pairs a ToolSpec with the handler that executes it.
type Tool struct {
	Spec    model.ToolSpec
	Handler Handler
}

// Envelope is the uniform JSON shape returned to the LLM for every tool
// call: {"ok": true, "result": ...} on success, {"ok": false, "error": ...}
// on failure — never a bare error string, so the model can branch on `ok`
// without parsing prose (spec.md §4.2).
type Envelope struct {
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
	Error  *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError is the structured error shape inside a failed Envelope.
type EnvelopeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SuccessEnvelope wraps a successful result.
func SuccessEnvelope(result map[string]any) Envelope {
	return Envelope{OK: true, Result: result}
}

// ErrorEnvelope wraps a failed call. kind is an apperr.Kind value rendered
// as a string so the model sees a stable vocabulary across turns.
func ErrorEnvelope(kind, message string) Envelope {
	return Envelope{OK: false, Error: &EnvelopeError{Kind: kind, Message: message}}
}
