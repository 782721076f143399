package rag

import (
	"fmt"
	"sort"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// FusionWeights are the reciprocal-rank-fusion weights for dense vs. sparse
// scores (spec.md §4.3 step 3: defaults w_dense=0.6, w_sparse=0.4).
type FusionWeights struct {
	Dense  float64 `yaml:"dense"`
	Sparse float64 `yaml:"sparse"`
}

// DefaultFusionWeights returns the spec-mandated default weights.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Dense: 0.6, Sparse: 0.4}
}

const rrfK = 60 // standard reciprocal-rank-fusion smoothing constant

// fuse combines dense and sparse rankings of the same candidate set via
// reciprocal-rank fusion, then sorts by fused score descending with a
// deterministic lexicographic tie-break on (doc_id, chunk_id)
// (spec.md §4.3 edge-case policies).
func fuse(candidates []bm25Candidate, denseScore map[string]float64, sparseScores map[string]float64, weights FusionWeights) []model.RetrievedPassage {
	denseRank := rankOf(sortByScore(candidates, denseScore), denseScore)
	sparseRank := rankOf(sortByScore(candidates, sparseScores), sparseScores)

	out := make([]model.RetrievedPassage, 0, len(candidates))
	for _, c := range candidates {
		k := key(c.DocID, c.ChunkID)
		fused := weights.Dense*rrfScore(denseRank[k]) + weights.Sparse*rrfScore(sparseRank[k])
		out = append(out, model.RetrievedPassage{
			DocID:       c.DocID,
			ChunkID:     c.ChunkID,
			Text:        c.Text,
			DenseScore:  denseScore[k],
			SparseScore: sparseScores[k],
			FusedScore:  fused,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func rrfScore(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1.0 / float64(rrfK+rank)
}

func sortByScore(candidates []bm25Candidate, scores map[string]float64) []string {
	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, key(c.DocID, c.ChunkID))
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return scores[keys[i]] > scores[keys[j]]
	})
	return keys
}

// rankOf assigns 1-based ranks in order; keys with equal scores share the
// rank of the first of them, so ties stay tied through fusion.
func rankOf(ordered []string, scores map[string]float64) map[string]int {
	ranks := make(map[string]int, len(ordered))
	for i, k := range ordered {
		if i > 0 && scores[k] == scores[ordered[i-1]] {
			ranks[k] = ranks[ordered[i-1]]
			continue
		}
		ranks[k] = i + 1
	}
	return ranks
}

// sortByRerankScore reorders passages by rerank score descending, with the
// same deterministic (doc_id, chunk_id) tie-break as fuse.
func sortByRerankScore(passages []model.RetrievedPassage) {
	sort.Slice(passages, func(i, j int) bool {
		if passages[i].RerankScore != passages[j].RerankScore {
			return passages[i].RerankScore > passages[j].RerankScore
		}
		if passages[i].DocID != passages[j].DocID {
			return passages[i].DocID < passages[j].DocID
		}
		return passages[i].ChunkID < passages[j].ChunkID
	})
}

// tagCitations assigns each passage a stable citation token in rank order
// (spec.md §4.3 step 6: "a short stable token... e.g. [C1]").
func tagCitations(passages []model.RetrievedPassage) {
	for i := range passages {
		passages[i].CitationTag = fmt.Sprintf("[C%d]", i+1)
	}
}
