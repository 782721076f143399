package graph

import "github.com/bestbox-ai/orchestrator/pkg/model"

// Persona binds a specialist node to its system prompt and the subset of
// the tool catalog it is allowed to call (spec.md §4.6 step 1: "system
// persona + compacted messages + domain-specific tool specs"). Personas are
// wired explicitly at startup by the composition root, not discovered by a
// tool-naming convention — the same dependency-injection shape spec.md §9
// asks for with "shared adapter instances... passed explicitly".
type Persona struct {
	Agent        model.AgentName
	SystemPrompt string
	ToolNames    []string
}

// PersonaSet maps each specialist to its Persona. The router's enumerated
// choice set is model.SpecialistAgents; a Persona missing from this map for
// one of those names is a wiring bug, caught at the first turn routed to it.
type PersonaSet map[model.AgentName]Persona
