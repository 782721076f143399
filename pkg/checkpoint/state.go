// Package checkpoint provides execution state capture and recovery for
// in-flight turns (spec.md §4.7).
//
// A State snapshot is everything the graph runtime needs to resume a turn
// from the exact step it was interrupted at: the active graph phase, the
// running agent, the message history accumulated so far, and — when the
// turn is parked on a human decision — the pending tool approval. Snapshots
// are persisted through pkg/store's compare-and-swap checkpoints table
// rather than a session-state blob, so a resume can never silently regress
// to an older step written by a slower, now-superseded writer.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// Phase mirrors the graph runtime's state machine (spec.md §4.6).
type Phase string

const (
	PhaseRouting       Phase = "routing"
	PhaseExecuting     Phase = "executing"
	PhaseAwaitingTool  Phase = "awaiting_tool"
	PhaseAwaitingHuman Phase = "awaiting_human"
	PhaseAnswering     Phase = "answering"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// Type records why a checkpoint was written.
type Type string

const (
	TypeEvent    Type = "event"    // tool approval, error, completion
	TypeInterval Type = "interval" // every N steps
	TypeManual   Type = "manual"
	TypeError    Type = "error"
)

// State is the full execution snapshot at one graph step.
type State struct {
	ThreadID string `json:"thread_id"`
	TurnID   string `json:"turn_id"`

	Query        string `json:"query"`
	CurrentAgent string `json:"current_agent"`

	// StepIndex orders writers for the checkpoints table's CAS write.
	// Incremented on every WithPhase; Save writes it unchanged.
	StepIndex int64 `json:"step_index"`

	Iteration     int                    `json:"iteration"`
	ToolCallCount int                    `json:"tool_call_count"`
	Messages      []model.Message        `json:"messages,omitempty"`
	PendingTool   *model.PendingApproval `json:"pending_tool,omitempty"`

	Phase          Phase     `json:"phase"`
	CheckpointType Type      `json:"checkpoint_type"`
	CheckpointTime time.Time `json:"checkpoint_time"`

	Error string `json:"error,omitempty"`
}

// Serialize converts the State to JSON bytes for model.Checkpoint.StateSnapshot.
func (s *State) Serialize() ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot serialize nil checkpoint state")
	}
	return json.Marshal(s)
}

// Deserialize reconstructs a State from a model.Checkpoint.StateSnapshot.
func Deserialize(data []byte) (*State, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot deserialize empty checkpoint state")
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint state: %w", err)
	}
	return &state, nil
}

// NewState creates the initial checkpoint State for a turn.
func NewState(threadID, turnID, query, currentAgent string) *State {
	return &State{
		ThreadID:       threadID,
		TurnID:         turnID,
		Query:          query,
		CurrentAgent:   currentAgent,
		StepIndex:      0,
		Phase:          PhaseRouting,
		CheckpointType: TypeEvent,
		CheckpointTime: time.Now(),
	}
}

// Append adds a message to the turn's accumulated history, preserving
// monotonic order (spec.md §3: "messages grows monotonically within a turn").
func (s *State) Append(m model.Message) {
	s.Messages = append(s.Messages, m)
}

// WithPhase sets the graph phase and advances the step index.
func (s *State) WithPhase(phase Phase) *State {
	s.Phase = phase
	s.StepIndex++
	s.CheckpointTime = time.Now()
	return s
}

// WithType sets the checkpoint type.
func (s *State) WithType(t Type) *State {
	s.CheckpointType = t
	return s
}

// WithPendingTool records a tool call awaiting human approval.
func (s *State) WithPendingTool(p *model.PendingApproval) *State {
	s.PendingTool = p
	return s
}

// WithError marks the checkpoint as a failure snapshot.
func (s *State) WithError(err error) *State {
	if err != nil {
		s.Error = err.Error()
		s.Phase = PhaseFailed
		s.CheckpointType = TypeError
	}
	return s
}

// IsExpired reports whether the checkpoint is older than timeout.
func (s *State) IsExpired(timeout time.Duration) bool {
	if s.CheckpointTime.IsZero() || timeout <= 0 {
		return false
	}
	return time.Since(s.CheckpointTime) > timeout
}

// NeedsHumanInput reports whether the turn is parked awaiting approval.
func (s *State) NeedsHumanInput() bool {
	return s.Phase == PhaseAwaitingHuman && s.PendingTool != nil
}

// IsTerminal reports whether the turn has reached a final phase.
func (s *State) IsTerminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseFailed
}
