package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25_RanksExactTermMatchHigher(t *testing.T) {
	candidates := []bm25Candidate{
		{DocID: "doc-1", ChunkID: "1", Text: "flash defect occurs near the gate when clamping pressure is low"},
		{DocID: "doc-2", ChunkID: "1", Text: "routine maintenance schedule for the injection molding machine"},
	}
	scores := bm25("flash defect", candidates)
	require.NotNil(t, scores)
	assert.Greater(t, scores[key("doc-1", "1")], scores[key("doc-2", "1")])
}

func TestBM25_EmptyQueryReturnsNil(t *testing.T) {
	candidates := []bm25Candidate{{DocID: "doc-1", ChunkID: "1", Text: "text"}}
	assert.Nil(t, bm25("", candidates))
}
