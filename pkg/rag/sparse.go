package rag

import (
	"math"
	"strings"
)

// bm25Candidate is the minimal shape sparse scoring needs from a passage.
type bm25Candidate struct {
	DocID   string
	ChunkID string
	Text    string
}

// bm25 scores candidates against query terms using Okapi BM25
// (spec.md §4.3 step 3: "sparse BM25"), operating over the same candidate
// pool the dense search already narrowed down — generalizing the teacher's
// vector-result keyword-filtering fallback
// (pkg/databases/qdrant.go's filterByKeywords/reciprocalRankFusion) from a
// simple match-ratio score to full term-frequency/inverse-document-frequency
// scoring, rather than maintaining a separate full-corpus inverted index.
func bm25(query string, candidates []bm25Candidate) map[string]float64 {
	const k1 = 1.2
	const b = 0.75

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(candidates) == 0 {
		return nil
	}

	docTokens := make([][]string, len(candidates))
	var totalLen int
	for i, cand := range candidates {
		docTokens[i] = tokenize(cand.Text)
		totalLen += len(docTokens[i])
	}
	avgDocLen := float64(totalLen) / float64(len(candidates))
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	df := make(map[string]int)
	for _, terms := range docTokens {
		seen := make(map[string]bool)
		for _, t := range terms {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	n := float64(len(candidates))

	scores := make(map[string]float64, len(candidates))
	for i, cand := range candidates {
		tf := make(map[string]int)
		for _, t := range docTokens[i] {
			tf[t]++
		}
		docLen := float64(len(docTokens[i]))

		var score float64
		for _, qt := range queryTerms {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[qt])+0.5)/(float64(df[qt])+0.5))
			score += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*docLen/avgDocLen))
		}
		scores[key(cand.DocID, cand.ChunkID)] = score
	}
	return scores
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func key(docID, chunkID string) string {
	return docID + "\x00" + chunkID
}
