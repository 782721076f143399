// Package llm is the streaming chat+tool-call abstraction over an
// OpenAI-compatible endpoint (spec.md §4.4). It tolerates the quirks of
// locally hosted, quantized models: a reasoning preamble ahead of the
// visible answer, and malformed tool-call JSON.
package llm

import "github.com/bestbox-ai/orchestrator/pkg/model"

// ToolCall is a single function call the model asked the runtime to
// dispatch, with both the parsed arguments and the raw JSON the model
// produced (kept for diagnostics when repair was needed).
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	RawArgs   string
	Repaired  bool
}

// ChunkType discriminates a StreamChunk.
type ChunkType string

const (
	ChunkThink    ChunkType = "think"
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// StreamChunk is one unit of a GenerateStreaming response. Exactly one of
// Text/ToolCall/Error is meaningful, selected by Type.
type StreamChunk struct {
	Type     ChunkType
	Text     string
	ToolCall *ToolCall
	Tokens   int
	Error    error
}

// Result is the outcome of a non-streaming Generate call.
type Result struct {
	Text           string
	ReasoningTrace []model.ReasoningStep
	ToolCalls      []ToolCall
	Tokens         int
}

// wireMessage is the OpenAI-compatible chat message shape sent on the wire.
// Converted from model.Message at the call boundary so the rest of the
// runtime never depends on this package's transport format.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function wireToolCallFn `json:"function"`
}

type wireToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireToolSpec `json:"function"`
}

type wireToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func toWireRole(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "user"
	case model.RoleAssistant:
		return "assistant"
	case model.RoleToolResult:
		return "tool"
	case model.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

func toWireMessages(messages []model.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{
			Role:       toWireRole(m.Role),
			Content:    m.Content,
			Name:       m.ToolName,
			ToolCallID: m.ToolCallID,
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(specs []model.ToolSpec) []wireTool {
	out := make([]wireTool, 0, len(specs))
	for _, s := range specs {
		out = append(out, wireTool{
			Type: "function",
			Function: wireToolSpec{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.ArgSchema,
			},
		})
	}
	return out
}
