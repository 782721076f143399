package model

// AgentName enumerates the graph's nodes (spec.md §4.6).
type AgentName string

const (
	AgentRouter AgentName = "router"
	AgentERP    AgentName = "erp"
	AgentCRM    AgentName = "crm"
	AgentIT     AgentName = "it"
	AgentOA     AgentName = "oa"
	AgentMold   AgentName = "mold"
	AgentFinish AgentName = "finish"
)

// SpecialistAgents is the enumerated set the router is constrained to choose
// from (spec.md §4.6: "constrained to the enumerated set").
var SpecialistAgents = []AgentName{AgentERP, AgentCRM, AgentIT, AgentOA, AgentMold}

// IsSpecialist reports whether name is one of the enumerated specialists.
func IsSpecialist(name AgentName) bool {
	for _, s := range SpecialistAgents {
		if s == name {
			return true
		}
	}
	return false
}

// AgentState is the in-memory per-turn state threaded through the graph
// (spec.md §3). Messages grows monotonically within a turn; RetrievedContext
// is keyed by domain so each specialist sees only its own retrieval results.
type AgentState struct {
	Messages         []Message                    `json:"messages"`
	CurrentAgent     AgentName                     `json:"current_agent"`
	ToolCallCount    int                           `json:"tool_call_count"`
	UserContext      UserContext                   `json:"user_context"`
	RetrievedContext map[string][]RetrievedPassage `json:"retrieved_context,omitempty"`
}

// Append adds a message to the turn's history, preserving monotonic order.
func (s *AgentState) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// LastMessage returns the most recently appended message, or the zero value
// if the state has no messages yet.
func (s *AgentState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
