package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/vector"
)

type fakeEmbed struct {
	vec []float32
	err error
}

func (f *fakeEmbed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeRerank struct {
	scores []float64
	err    error
}

func (f *fakeRerank) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func newTestProvider(t *testing.T, docs map[string]string) vector.Provider {
	t.Helper()
	p := vector.NewMemoryProvider()
	for id, text := range docs {
		require.NoError(t, p.Upsert(context.Background(), "kb", id, []float32{0.1, 0.2, 0.3},
			map[string]any{"doc_id": id, "chunk_id": "1", "content": text}))
	}
	return p
}

func TestRetriever_Retrieve_ReturnsCitationTaggedPassages(t *testing.T) {
	provider := newTestProvider(t, map[string]string{
		"doc-1": "flash defect occurs near the gate",
		"doc-2": "routine maintenance schedule",
	})
	embed := &fakeEmbed{vec: []float32{0.1, 0.2, 0.3}}
	cfg := Config{Collection: "kb"}
	r := New(cfg, provider, embed, nil, NewCatalog(DefaultMoldLexicon()), nil)

	passages, err := r.Retrieve(context.Background(), "mold", "flash defect", nil)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "[C1]", passages[0].CitationTag)
}

func TestRetriever_Retrieve_EmptyQueryReturnsEmptyNotError(t *testing.T) {
	provider := newTestProvider(t, nil)
	embed := &fakeEmbed{vec: []float32{0.1}}
	r := New(Config{Collection: "kb"}, provider, embed, nil, nil, nil)

	passages, err := r.Retrieve(context.Background(), "mold", "", nil)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetriever_Retrieve_EmbedFailureFallsBackDegraded(t *testing.T) {
	provider := newTestProvider(t, map[string]string{"doc-1": "flash defect near gate"})
	embed := &fakeEmbed{err: errors.New("embeddings endpoint down")}
	r := New(Config{Collection: "kb"}, provider, embed, nil, nil, nil)

	passages, err := r.Retrieve(context.Background(), "mold", "flash defect", nil)
	require.NoError(t, err)
	assert.Empty(t, passages) // no dense candidates; sparse-only with no doc pool has nothing to retrieve
}

func TestRetriever_Retrieve_RerankFailureFallsBackToFusedOrder(t *testing.T) {
	provider := newTestProvider(t, map[string]string{
		"doc-1": "flash defect occurs near the gate",
		"doc-2": "short shot on thin wall section",
	})
	embed := &fakeEmbed{vec: []float32{0.1, 0.2, 0.3}}
	rerank := &fakeRerank{err: errors.New("reranker endpoint down")}
	r := New(Config{Collection: "kb"}, provider, embed, rerank, NewCatalog(DefaultMoldLexicon()), nil)

	passages, err := r.Retrieve(context.Background(), "mold", "flash defect", nil)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	for _, p := range passages {
		assert.False(t, p.Reranked)
	}
}
