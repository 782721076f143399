package model

// RetrievedPassage is one result of the Hybrid Retriever pipeline
// (spec.md §3, §4.3), carrying the component scores that produced its final
// rank plus a stable citation token the LLM can cite verbatim.
type RetrievedPassage struct {
	DocID       string  `json:"doc_id"`
	ChunkID     string  `json:"chunk_id"`
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Domain      string  `json:"domain"`
	DenseScore  float64 `json:"dense_score"`
	SparseScore float64 `json:"sparse_score"`
	FusedScore  float64 `json:"fused_score"`
	RerankScore float64 `json:"rerank_score,omitempty"`
	Reranked    bool    `json:"reranked"`
	CitationTag string  `json:"citation_tag"`
}

// KBChunkPayload mirrors the external KB chunk's payload shape (spec.md §3),
// shown here only at the interface the retriever reads it through.
type KBChunkPayload struct {
	Domain     string `json:"domain"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Section    string `json:"section"`
	FileHash   string `json:"file_hash"`
	OrgID      string `json:"org_id,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}
