package contextwindow

import (
	"context"
	"log/slog"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// Compactor is C5, the Turn Context Manager (spec.md §4.5). It keeps a
// thread's message history under a turn's token budget while guaranteeing
// the system prompt and the latest KRecent turns survive byte-identical
// (spec.md §8's testable property).
type Compactor struct {
	cfg Config
	llm llm.Client
}

// New builds a Compactor. llm may be nil — summarization is then skipped
// and the drop-oldest-turn fallback is used unconditionally.
func New(cfg Config, client llm.Client) *Compactor {
	cfg.SetDefaults()
	return &Compactor{cfg: cfg, llm: client}
}

// Compact returns a message list that fits within cfg.BudgetTokens,
// preserving any leading system/non-turn messages and the most recent
// KRecent turn groups verbatim. Tool results are truncated first,
// independent of the budget (spec.md §4.5 item 3).
func (c *Compactor) Compact(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	truncated := truncateToolResults(messages, c.cfg.MaxToolResultTokens)
	leading, groups := groupByTurn(truncated)

	if len(groups) <= c.cfg.KRecent {
		return append(append([]model.Message{}, leading...), flattenGroups(groups)...), nil
	}

	recentGroups := groups[len(groups)-c.cfg.KRecent:]
	olderGroups := groups[:len(groups)-c.cfg.KRecent]
	recentMsgs := flattenGroups(recentGroups)

	leadingTokens := llm.EstimateMessagesTokens(leading)
	recentTokens := llm.EstimateMessagesTokens(recentMsgs)
	if leadingTokens+recentTokens > c.cfg.BudgetTokens {
		return nil, apperr.New(apperr.KindContextOverflow,
			"system prompt and %d most recent turns alone (%d tokens) exceed budget %d",
			c.cfg.KRecent, leadingTokens+recentTokens, c.cfg.BudgetTokens)
	}

	olderTokens := llm.EstimateMessagesTokens(flattenGroups(olderGroups))
	budgetForOlder := c.cfg.BudgetTokens - leadingTokens - recentTokens
	if olderTokens <= c.cfg.summarizeThresholdTokens() && olderTokens <= budgetForOlder {
		result := append(append([]model.Message{}, leading...), flattenGroups(olderGroups)...)
		return append(result, recentMsgs...), nil
	}

	digest, remaining := c.summarizeOrDrop(ctx, olderGroups)
	result := append([]model.Message{}, leading...)
	if digest != nil {
		result = append(result, *digest)
	}
	result = append(result, flattenGroups(remaining)...)
	return append(result, recentMsgs...), nil
}

// summarizeOrDrop delegates older to the LLM client for a single digest
// message; if summarization fails or no client is configured, it drops the
// oldest turn group and retries, per spec.md §4.5 item 4.
func (c *Compactor) summarizeOrDrop(ctx context.Context, older []turnGroup) (*model.Message, []turnGroup) {
	if c.llm == nil {
		return nil, c.dropOldestUntilFits(older)
	}

	summary, err := summarize(ctx, c.llm, flattenGroups(older))
	if err != nil || summary == "" {
		slog.Warn("contextwindow: summarization failed, dropping oldest turn", "error", err)
		return nil, c.dropOldestUntilFits(older)
	}

	threadID, turnID := "", ""
	if len(older) > 0 && len(older[0].Messages) > 0 {
		threadID = older[0].Messages[0].ThreadID
		turnID = older[len(older)-1].TurnID
	}
	digest := model.Digest(threadID, turnID, summary)
	return &digest, nil
}

// dropOldestUntilFits repeatedly drops the oldest turn group until the
// remainder fits the summarization threshold, or none are left.
func (c *Compactor) dropOldestUntilFits(older []turnGroup) []turnGroup {
	remaining := older
	for len(remaining) > 0 && llm.EstimateMessagesTokens(flattenGroups(remaining)) > c.cfg.summarizeThresholdTokens() {
		remaining = remaining[1:]
	}
	return remaining
}
