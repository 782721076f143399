package model

import "time"

// Role is the tagged-union discriminant for Message (spec.md §9: "do not
// rely on dynamic attribute bags").
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleSystem    Role = "system"
)

// ReasoningStep is one entry of a message's structured reasoning trace
// (spec.md §3: "structured sequence of {think, act, observe, answer}").
type ReasoningStep struct {
	Kind      StepKind  `json:"kind"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// StepKind discriminates the four reasoning-trace step kinds.
type StepKind string

const (
	StepThink   StepKind = "think"
	StepAct     StepKind = "act"
	StepObserve StepKind = "observe"
	StepAnswer  StepKind = "answer"
)

// Message is one immutable item in a Thread's history (spec.md §3).
// Insertion order is relevant and is enforced by Seq, a monotonic
// per-thread counter assigned at append time.
type Message struct {
	Seq            int64            `json:"seq"`
	ThreadID       string           `json:"thread_id"`
	TurnID         string           `json:"turn_id"`
	Role           Role             `json:"role"`
	Content        string           `json:"content"`
	ToolName       string           `json:"tool_name,omitempty"`
	ToolArgs       map[string]any   `json:"tool_args,omitempty"`
	ToolCallID     string           `json:"tool_call_id,omitempty"`
	ReasoningTrace []ReasoningStep  `json:"reasoning_trace,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Digest produces a compaction-safe, system-tagged summary Message replacing
// a run of older messages (spec.md §4.5).
func Digest(threadID, turnID, summary string) Message {
	return Message{
		ThreadID:  threadID,
		TurnID:    turnID,
		Role:      RoleSystem,
		Content:   summary,
		CreatedAt: time.Now(),
	}
}
