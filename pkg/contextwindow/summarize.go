package contextwindow

import (
	"context"
	"strings"

	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// summarize delegates to C4 with a dedicated short prompt (spec.md §4.5
// item 4), collapsing older to a single digest paragraph. The teacher's
// SummarizationService prompt is condensed: this runtime's digest is a
// compaction artifact consumed by the router/specialist loop, not a
// user-facing transcript, so a short directive prompt suffices.
func summarize(ctx context.Context, client llm.Client, older []model.Message) (string, error) {
	if len(older) == 0 {
		return "", nil
	}
	transcript := formatTranscript(older)
	prompt := []model.Message{
		{
			Role: model.RoleSystem,
			Content: "Summarize the conversation below in one short paragraph. " +
				"Preserve facts, decisions, and any pending tool results a later turn might need. " +
				"Do not add commentary.",
		},
		{Role: model.RoleUser, Content: transcript},
	}
	res, err := client.Generate(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(res.Text)
	return summary, nil
}

func formatTranscript(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
