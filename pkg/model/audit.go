package model

import "time"

// EventType discriminates AuditEvent records (spec.md §3, §4.9).
type EventType string

const (
	EventTurnStarted     EventType = "turn_start"
	EventTurnCompleted   EventType = "turn_end"
	EventToolCalled      EventType = "tool_call"
	EventApprovalGranted EventType = "approval_granted"
	EventApprovalDenied  EventType = "approval_denied"
	EventRatingSubmitted EventType = "rating"
	EventTurnFailed      EventType = "turn_failed"
)

// AuditEvent is one append-only record in the audit log (spec.md §3, C9).
// Writes are best-effort: a failed audit write never fails the turn it
// describes (spec.md §4.9).
type AuditEvent struct {
	ThreadID  string         `json:"thread_id"`
	TurnID    string         `json:"turn_id,omitempty"`
	EventType EventType      `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
