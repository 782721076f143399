// Package model defines the core data entities shared across the runtime:
// Thread, Turn, Message, AgentState, ToolSpec, Checkpoint and RetrievedPassage
// (spec.md §3). These are plain Go structs; persistence lives in pkg/store,
// execution lives in pkg/graph.
package model

import "time"

// ThreadStatus is the lifecycle state of a Thread.
type ThreadStatus string

const (
	ThreadActive      ThreadStatus = "active"
	ThreadInterrupted ThreadStatus = "interrupted"
	ThreadComplete    ThreadStatus = "complete"
	ThreadFailed      ThreadStatus = "failed"
)

// UserContext carries caller identity, roles, org and permission tags.
// Permission tags gate tool invocation (spec.md §4.2).
type UserContext struct {
	UserID      string   `json:"user_id"`
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether tag is present in the caller's permission set.
func (u UserContext) HasPermission(tag string) bool {
	if tag == "" {
		return true
	}
	for _, p := range u.Permissions {
		if p == tag {
			return true
		}
	}
	return false
}

// Thread is a uniquely identified conversation (spec.md §3).
type Thread struct {
	ThreadID    string       `json:"thread_id"`
	UserContext UserContext  `json:"user_context"`
	Status      ThreadStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Rating is the user-supplied quality signal on a completed Turn.
type Rating string

const (
	RatingGood Rating = "good"
	RatingBad  Rating = "bad"
	RatingNone Rating = ""
)

// Turn is one request/response exchange within a Thread (spec.md §3).
type Turn struct {
	TurnID         string     `json:"turn_id"`
	ThreadID       string     `json:"thread_id"`
	InputText      string     `json:"input_text"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CurrentAgent   string     `json:"current_agent"`
	ToolCallCount  int        `json:"tool_call_count"`
	FinalAnswer    string     `json:"final_answer,omitempty"`
	Rating         Rating     `json:"rating,omitempty"`
}

// ExceedsToolCallLimit reports whether the turn is at or past the per-turn
// tool-call limit (spec.md §3 invariant: tool_call_count ≤ MAX_TOOL_CALLS_PER_TURN).
func (t *Turn) ExceedsToolCallLimit(max int) bool {
	return t.ToolCallCount >= max
}
