package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_OrdersByFusedScoreWithTieBreak(t *testing.T) {
	candidates := []bm25Candidate{
		{DocID: "doc-b", ChunkID: "1", Text: "flash defect on the gate area"},
		{DocID: "doc-a", ChunkID: "1", Text: "flash defect on the gate area"},
	}
	dense := map[string]float64{
		key("doc-b", "1"): 0.9,
		key("doc-a", "1"): 0.9,
	}
	sparse := map[string]float64{
		key("doc-b", "1"): 0.5,
		key("doc-a", "1"): 0.5,
	}

	out := fuse(candidates, dense, sparse, DefaultFusionWeights())
	require.Len(t, out, 2)
	// Equal fused scores: tie-break lexicographically on doc_id.
	assert.Equal(t, "doc-a", out[0].DocID)
	assert.Equal(t, "doc-b", out[1].DocID)
}

func TestFuse_HigherDenseScoreRanksFirst(t *testing.T) {
	candidates := []bm25Candidate{
		{DocID: "doc-low", ChunkID: "1", Text: "unrelated text"},
		{DocID: "doc-high", ChunkID: "1", Text: "unrelated text"},
	}
	dense := map[string]float64{
		key("doc-low", "1"):  0.1,
		key("doc-high", "1"): 0.95,
	}
	out := fuse(candidates, dense, nil, DefaultFusionWeights())
	require.Len(t, out, 2)
	assert.Equal(t, "doc-high", out[0].DocID)
}

func TestTagCitations_SequentialStableTokens(t *testing.T) {
	candidates := []bm25Candidate{{DocID: "a", ChunkID: "1"}, {DocID: "b", ChunkID: "1"}}
	passages := fuse(candidates, nil, nil, DefaultFusionWeights())
	tagCitations(passages)
	require.Len(t, passages, 2)
	assert.Equal(t, "[C1]", passages[0].CitationTag)
	assert.Equal(t, "[C2]", passages[1].CitationTag)
}
