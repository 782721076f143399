package rag

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/httpx"
)

// EmbedClient produces dense vector embeddings for text (spec.md §6:
// "embeddings endpoint... text→vector").
type EmbedClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbedConfig configures an HTTPEmbedClient.
type HTTPEmbedConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *httpx.Client
}

// HTTPEmbedClient calls an OpenAI-compatible embeddings endpoint
// (spec.md §4.3 step 2: "dense 1024-d, normalized").
type HTTPEmbedClient struct {
	cfg HTTPEmbedConfig
}

// NewHTTPEmbedClient creates an HTTPEmbedClient from cfg.
func NewHTTPEmbedClient(cfg HTTPEmbedConfig) *HTTPEmbedClient {
	if cfg.Client == nil {
		cfg.Client = httpx.New()
	}
	return &HTTPEmbedClient{cfg: cfg}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed implements EmbedClient.
func (c *HTTPEmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := embedRequest{Model: c.cfg.Model, Input: texts}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "encode embed request")
	}
	req, err := httpx.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "build embed request")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "call embeddings endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "embeddings endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "decode embeddings response")
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, apperr.New(apperr.KindInternal, "embeddings response index %d out of range", d.Index)
		}
		vectors[d.Index] = normalize(d.Embedding)
	}
	return vectors, nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
