package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_SearchRanksByCosineSimilarity(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "kb", "a", []float32{1, 0}, map[string]any{"content": "a"}))
	require.NoError(t, p.Upsert(ctx, "kb", "b", []float32{0, 1}, map[string]any{"content": "b"}))

	results, err := p.Search(ctx, "kb", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}

func TestMemoryProvider_SearchWithFilterExcludesNonMatching(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "kb", "a", []float32{1, 0}, map[string]any{"domain": "erp"}))
	require.NoError(t, p.Upsert(ctx, "kb", "b", []float32{1, 0}, map[string]any{"domain": "crm"}))

	results, err := p.SearchWithFilter(ctx, "kb", []float32{1, 0}, 10, map[string]any{"domain": "erp"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestMemoryProvider_DeleteRemovesPoint(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "kb", "a", []float32{1, 0}, nil))
	require.NoError(t, p.Delete(ctx, "kb", "a"))

	results, err := p.Search(ctx, "kb", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryProvider_TopKTruncates(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		vec := []float32{float32(i + 1), 0}
		require.NoError(t, p.Upsert(ctx, "kb", id, vec, nil))
	}

	results, err := p.Search(ctx, "kb", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
