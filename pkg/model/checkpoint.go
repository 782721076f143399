package model

import "time"

// Checkpoint is a durable per-(thread_id, turn_id) state snapshot
// (spec.md §3, §4.7). Exactly one "latest" snapshot exists per key at a
// time; step_index orders writers for compare-and-swap.
type Checkpoint struct {
	ThreadID      string    `json:"thread_id"`
	TurnID        string    `json:"turn_id"`
	StepIndex     int64     `json:"step_index"`
	StateSnapshot []byte    `json:"state_snapshot"` // serialized AgentState + graph phase
	CreatedAt     time.Time `json:"created_at"`
}

// RecordedToolCall captures a completed (or failed) tool invocation so that
// replay on resume can short-circuit instead of re-executing it
// (spec.md §5: "tools with recorded results are not re-executed").
type RecordedToolCall struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// PendingApproval is the envelope a write-class tool returns instead of
// executing inline (spec.md §4.2, §9).
type PendingApproval struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	Reason     string         `json:"reason,omitempty"`
}
