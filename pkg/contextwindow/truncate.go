package contextwindow

import (
	"fmt"

	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// truncationMarkerFmt replaces the tail of an oversized tool result. The full
// result is never lost — it is written to the audit log by the caller
// before compaction ever sees it (spec.md §4.5 item 3).
const truncationMarkerFmt = "\n...[truncated: %d of %d estimated tokens omitted; full result in audit log]"

// truncateToolResults caps any single tool_result message's content at
// maxTokens, independent of and prior to the turn-grouping/summarization
// pass below.
func truncateToolResults(messages []model.Message, maxTokens int) []model.Message {
	out := make([]model.Message, len(messages))
	for i, m := range messages {
		if m.Role != model.RoleToolResult {
			out[i] = m
			continue
		}
		total := llm.EstimateTokens(m.Content)
		if total <= maxTokens {
			out[i] = m
			continue
		}
		out[i] = truncateMessage(m, maxTokens, total)
	}
	return out
}

func truncateMessage(m model.Message, maxTokens, totalTokens int) model.Message {
	// EstimateTokens is ~bytes/4 for non-CJK content; invert to find a byte
	// cutoff that lands close to maxTokens, then trim to a rune boundary.
	cutoff := maxTokens * 4
	if cutoff > len(m.Content) {
		cutoff = len(m.Content)
	}
	for cutoff > 0 && !isRuneBoundary(m.Content, cutoff) {
		cutoff--
	}
	m.Content = m.Content[:cutoff] + fmt.Sprintf(truncationMarkerFmt, totalTokens-maxTokens, totalTokens)
	return m
}

func isRuneBoundary(s string, i int) bool {
	if i == 0 || i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}
