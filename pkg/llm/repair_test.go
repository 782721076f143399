package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitReasoning_ExtractsPreambleAndAnswer(t *testing.T) {
	reasoning, answer := splitReasoning("<think>the user wants X</think>Here is X.")
	assert.Equal(t, "the user wants X", reasoning)
	assert.Equal(t, "Here is X.", answer)
}

func TestSplitReasoning_NoMarkerIsAllAnswer(t *testing.T) {
	reasoning, answer := splitReasoning("just a plain answer")
	assert.Empty(t, reasoning)
	assert.Equal(t, "just a plain answer", answer)
}

func TestSplitReasoning_UnclosedTagIsAllReasoning(t *testing.T) {
	reasoning, answer := splitReasoning("<think>still thinking, truncated stream")
	assert.Equal(t, "still thinking, truncated stream", reasoning)
	assert.Empty(t, answer)
}

func TestRepairToolArgs_ValidJSONPassesThroughUnrepaired(t *testing.T) {
	args, repaired, ok := repairToolArgs(`{"part":"gate","count":3}`)
	require.True(t, ok)
	assert.False(t, repaired)
	assert.Equal(t, "gate", args["part"])
}

func TestRepairToolArgs_TrailingCommaIsRepaired(t *testing.T) {
	args, repaired, ok := repairToolArgs(`{"part":"gate","count":3,}`)
	require.True(t, ok)
	assert.True(t, repaired)
	assert.Equal(t, "gate", args["part"])
}

func TestRepairToolArgs_TruncatedArrayIsRepaired(t *testing.T) {
	args, repaired, ok := repairToolArgs(`{"parts":["gate","runner"`)
	require.True(t, ok)
	assert.True(t, repaired)
	parts, isSlice := args["parts"].([]any)
	require.True(t, isSlice)
	assert.Equal(t, []any{"gate", "runner"}, parts)
}

func TestRepairToolArgs_UnrecoverableAfterThreeAttemptsFails(t *testing.T) {
	_, _, ok := repairToolArgs(`not json at all {{{`)
	assert.False(t, ok)
}
