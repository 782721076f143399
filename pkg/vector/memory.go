package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryProvider is an in-process Provider used by tests and the sample
// deployment's offline mode — brute-force cosine similarity over a map, no
// external dependency (spec.md §8: retrieval pipeline tests must not require
// a live vector database).
type MemoryProvider struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryPoint
}

type memoryPoint struct {
	vector   []float32
	metadata map[string]any
}

// NewMemoryProvider builds an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{collections: make(map[string]map[string]memoryPoint)}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) Upsert(_ context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.collections[collection] == nil {
		p.collections[collection] = make(map[string]memoryPoint)
	}
	p.collections[collection][id] = memoryPoint{vector: vector, metadata: metadata}
	return nil
}

func (p *MemoryProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (p *MemoryProvider) SearchWithFilter(_ context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	points := p.collections[collection]
	results := make([]Result, 0, len(points))
	for id, pt := range points {
		if !matchesFilter(pt.metadata, filter) {
			continue
		}
		content, _ := pt.metadata["content"].(string)
		results = append(results, Result{
			ID:       id,
			Content:  content,
			Vector:   pt.vector,
			Metadata: pt.metadata,
			Score:    cosineSimilarity(vector, pt.vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID // deterministic tie-break
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (p *MemoryProvider) Delete(_ context.Context, collection string, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.collections[collection], id)
	return nil
}

func (p *MemoryProvider) Close() error { return nil }

func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if got, ok := metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

var _ Provider = (*MemoryProvider)(nil)
