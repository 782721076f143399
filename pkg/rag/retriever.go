package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/vector"
)

// Config tunes the retrieval pipeline (spec.md §6: "retriever.top_k,
// retriever.top_n, retriever.weights").
type Config struct {
	Collection string        `yaml:"collection,omitempty"`
	TopK       int           `yaml:"top_k,omitempty"` // candidates considered before rerank, default 25
	TopN       int           `yaml:"top_n,omitempty"` // passages returned after rerank, default 5
	Weights    FusionWeights `yaml:"weights,omitempty"`
}

// SetDefaults applies spec.md §4.3's default tuning.
func (c *Config) SetDefaults() {
	if c.TopK <= 0 {
		c.TopK = 25
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.Weights == (FusionWeights{}) {
		c.Weights = DefaultFusionWeights()
	}
}

// Retriever implements the Hybrid Retriever pipeline (C3, spec.md §4.3).
type Retriever struct {
	cfg        Config
	provider   vector.Provider
	embed      EmbedClient
	rerank     RerankClient
	lexicon    *Catalog
	structured *StructuredCatalog // nil disables structured fusion
	tracer     *observability.Tracer
	metrics    *observability.Metrics
}

// New creates a Retriever. structured may be nil to disable step 4.
func New(cfg Config, provider vector.Provider, embed EmbedClient, rerank RerankClient, lexicon *Catalog, structured *StructuredCatalog) *Retriever {
	cfg.SetDefaults()
	if lexicon == nil {
		lexicon = NewCatalog()
	}
	return &Retriever{cfg: cfg, provider: provider, embed: embed, rerank: rerank, lexicon: lexicon, structured: structured}
}

// WithObservability attaches a tracer and metrics recorder to the retriever.
// Either may be nil; both tolerate nil receivers, so omitting this leaves
// the retriever fully functional but silent.
func (r *Retriever) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *Retriever {
	r.tracer = tracer
	r.metrics = metrics
	return r
}

// Retrieve runs the full pipeline for one query against one domain,
// returning citation-tagged passages ordered best-first. An empty result
// set is not an error, and neither is a failed embeddings, vector-search,
// structured-query or rerank call: each is logged and the pipeline goes on
// with what remains, so the returned error is always nil
// (spec.md §4.3 edge-case policies).
func (r *Retriever) Retrieve(ctx context.Context, domain, query string, filter map[string]any) ([]model.RetrievedPassage, error) {
	if query == "" {
		return nil, nil
	}

	start := time.Now()
	ctx, span := r.tracer.StartRetrieval(ctx, domain, query, r.cfg.TopK)
	defer span.End()

	ranked, err := r.retrieve(ctx, domain, query, filter)
	r.metrics.RecordRetrieval(domain, time.Since(start), len(ranked))
	if err != nil {
		r.tracer.RecordError(span, err)
	}
	return ranked, err
}

func (r *Retriever) retrieve(ctx context.Context, domain, query string, filter map[string]any) ([]model.RetrievedPassage, error) {
	expanded := r.lexicon.Expand(domain, query)

	candidates, denseScores, degraded := r.denseSearch(ctx, expanded, filter)
	if len(candidates) == 0 && !degraded {
		// A clean empty result (no hard failure, just nothing matched).
		if r.structured == nil || !r.lexicon.IsStructured(domain, query) {
			return nil, nil
		}
	}

	sparseScores := bm25(expanded, candidates)
	fused := fuse(candidates, denseScores, sparseScores, r.cfg.Weights)
	for i := range fused {
		fused[i].Domain = domain
		fused[i].Source = "vector"
	}

	if r.structured != nil && r.lexicon.IsStructured(domain, query) {
		rows, err := r.structured.Filter(ctx, StructuredFilter{Domain: domain}, r.cfg.TopK)
		if err != nil {
			slog.Warn("structured fusion query failed, continuing with vector-only results", "domain", domain, "error", err)
		} else {
			fused = append(fused, rows...)
		}
	}

	if len(fused) > r.cfg.TopK {
		fused = fused[:r.cfg.TopK]
	}

	ranked := r.applyRerank(ctx, query, fused)

	if len(ranked) > r.cfg.TopN {
		ranked = ranked[:r.cfg.TopN]
	}
	tagCitations(ranked)
	return ranked, nil
}

// denseSearch runs the embed+vector-search half of the pipeline. degraded is
// true when the embeddings call or the vector search failed; the candidate
// set is then empty, so the BM25 pass in retrieve has nothing to score and
// the result holds only structured-fusion rows, if any. Returned passages
// carry no marker of a degraded search.
func (r *Retriever) denseSearch(ctx context.Context, query string, filter map[string]any) ([]bm25Candidate, map[string]float64, bool) {
	vectors, err := r.embed.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		slog.Warn("embeddings call failed, falling back to sparse-only retrieval", "error", err)
		return nil, nil, true
	}

	var results []vector.Result
	if len(filter) > 0 {
		results, err = r.provider.SearchWithFilter(ctx, r.cfg.Collection, vectors[0], r.cfg.TopK*2, filter)
	} else {
		results, err = r.provider.Search(ctx, r.cfg.Collection, vectors[0], r.cfg.TopK*2)
	}
	if err != nil {
		slog.Warn("vector search failed, returning empty candidate set", "error", err)
		return nil, nil, true
	}

	candidates := make([]bm25Candidate, 0, len(results))
	denseScores := make(map[string]float64, len(results))
	for _, res := range results {
		docID, _ := res.Metadata["doc_id"].(string)
		chunkID, _ := res.Metadata["chunk_id"].(string)
		if docID == "" {
			docID = res.ID
		}
		c := bm25Candidate{DocID: docID, ChunkID: chunkID, Text: res.Content}
		candidates = append(candidates, c)
		denseScores[key(docID, chunkID)] = res.Score
	}
	return candidates, denseScores, false
}

// applyRerank re-scores passages via the reranker endpoint, falling back to
// the already-fused ranking on reranker failure (spec.md §4.3 edge-case
// policies: "on reranker failure, fall back to fused ranking").
func (r *Retriever) applyRerank(ctx context.Context, query string, passages []model.RetrievedPassage) []model.RetrievedPassage {
	if r.rerank == nil || len(passages) == 0 {
		return passages
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	scores, err := r.rerank.Rerank(ctx, query, texts)
	if err != nil {
		slog.Warn("reranker call failed, falling back to fused ranking", "error", err)
		return passages
	}

	for i := range passages {
		passages[i].RerankScore = scores[i]
		passages[i].Reranked = true
	}
	sortByRerankScore(passages)
	return passages
}
