package contextwindow

import "github.com/bestbox-ai/orchestrator/pkg/model"

// turnGroup is every message belonging to one turn, in append order. This
// runtime groups by TurnID rather than counting "user+assistant pairs"
// literally, since a single turn may include several tool_result/assistant
// messages before its final answer — grouping by TurnID keeps a turn's
// tool-call/observe/answer sequence atomic under compaction.
type turnGroup struct {
	TurnID   string
	Messages []model.Message
}

// groupByTurn splits messages into ordered, contiguous turn groups. System
// messages that aren't part of any turn (TurnID == "") are returned
// separately as leading preserved messages.
func groupByTurn(messages []model.Message) (leading []model.Message, groups []turnGroup) {
	for _, m := range messages {
		if m.TurnID == "" {
			leading = append(leading, m)
			continue
		}
		if len(groups) == 0 || groups[len(groups)-1].TurnID != m.TurnID {
			groups = append(groups, turnGroup{TurnID: m.TurnID})
		}
		last := len(groups) - 1
		groups[last].Messages = append(groups[last].Messages, m)
	}
	return leading, groups
}

func flattenGroups(groups []turnGroup) []model.Message {
	var out []model.Message
	for _, g := range groups {
		out = append(out, g.Messages...)
	}
	return out
}
