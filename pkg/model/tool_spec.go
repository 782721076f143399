package model

// SideEffectClass classifies a tool as safe to auto-execute (read) or as
// requiring a human-in-the-loop interrupt before it runs (write).
type SideEffectClass string

const (
	SideEffectRead  SideEffectClass = "read"
	SideEffectWrite SideEffectClass = "write"
)

// ToolSpec is the declarative, LLM-callable operation description
// (spec.md §3, §4.2, §9: "explicit ToolSpec record list loaded at startup").
type ToolSpec struct {
	Name            string
	Description     string
	ArgSchema       map[string]any
	PermissionTag   string
	SideEffectClass SideEffectClass
}

// RequiresApproval reports whether invoking this tool must go through the
// awaiting_human interrupt (spec.md §4.2, §4.6).
func (t ToolSpec) RequiresApproval() bool {
	return t.SideEffectClass == SideEffectWrite
}
