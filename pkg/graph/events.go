package graph

import "github.com/bestbox-ai/orchestrator/pkg/model"

// EventKind discriminates the events a Run emits to its caller, in the
// total-within-a-turn order spec.md §4.6 requires: think, act, observe,
// answer (order across concurrent turns is unconstrained).
type EventKind string

const (
	EventThink            EventKind = "think"
	EventAct              EventKind = "act"
	EventObserve          EventKind = "observe"
	EventAnswer           EventKind = "answer"
	EventAwaitingApproval EventKind = "awaiting_approval"
	EventDone             EventKind = "done"
	EventError            EventKind = "error"
)

// Event is one unit of streamed turn output, the shape pkg/server
// translates into SSE frames.
type Event struct {
	Kind       EventKind
	Agent      model.AgentName
	Text       string // think/answer delta text
	ToolName   string // act/observe
	ToolCallID string
	ToolArgs   map[string]any        // act
	ToolResult map[string]any        // observe, nil on failure
	Pending    *model.PendingApproval // awaiting_approval
	Err        error                  // error
}
