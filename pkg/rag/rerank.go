package rag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/httpx"
)

// RerankClient scores (query, passage) pairs for relevance
// (spec.md §6: "Reranker endpoint (consumed): POST /rerank with
// {query, passages} -> {scores: [float]}").
type RerankClient interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// HTTPRerankConfig configures an HTTPRerankClient.
type HTTPRerankConfig struct {
	BaseURL string
	APIKey  string
	Client  *httpx.Client
}

// HTTPRerankClient calls the reranker endpoint named in spec.md §6.
type HTTPRerankClient struct {
	cfg HTTPRerankConfig
}

// NewHTTPRerankClient creates an HTTPRerankClient from cfg.
func NewHTTPRerankClient(cfg HTTPRerankConfig) *HTTPRerankClient {
	if cfg.Client == nil {
		cfg.Client = httpx.New()
	}
	return &HTTPRerankClient{cfg: cfg}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank implements RerankClient.
func (c *HTTPRerankClient) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Passages: passages})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "encode rerank request")
	}
	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/rerank", payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "build rerank request")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "call reranker endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "reranker endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "decode rerank response")
	}
	if len(out.Scores) != len(passages) {
		return nil, apperr.New(apperr.KindInternal, "reranker returned %d scores for %d passages", len(out.Scores), len(passages))
	}
	return out.Scores, nil
}
