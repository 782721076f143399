package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{BaseURL: srv.URL, Model: "test-model", ContextWindow: 100000, MaxRetries: 0}, nil)
}

func TestGenerate_StripsReasoningPreamble(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"<think>the user wants a count</think>There are 3."}}],"usage":{"total_tokens":42}}`)
	})

	res, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "how many?"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "There are 3.", res.Text)
	require.Len(t, res.ReasoningTrace, 1)
	assert.Equal(t, "the user wants a count", res.ReasoningTrace[0].Content)
	assert.Equal(t, 42, res.Tokens)
}

func TestGenerate_RepairsMalformedToolCallArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[{"id":"call-1","type":"function","function":{"name":"lookup_part","arguments":"{\"part\":\"gate\",}"}}]}}]}`)
	})

	res, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "look up gate"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.True(t, res.ToolCalls[0].Repaired)
	assert.Equal(t, "gate", res.ToolCalls[0].Arguments["part"])
}

func TestGenerate_ContextOverflowFailsFast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should never be sent when context overflows")
	})
	c.cfg.ContextWindow = 10

	huge := make([]model.Message, 0, 50)
	for i := 0; i < 50; i++ {
		huge = append(huge, model.Message{Role: model.RoleUser, Content: "a very long message that pushes past the tiny test window"})
	}

	_, err := c.Generate(context.Background(), huge, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindContextOverflow, apperr.KindOf(err))
}

func TestGenerate_UpstreamErrorStatusMapsToUpstreamUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "down for maintenance")
	})

	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestGenerateStreaming_EmitsThinkTextToolCallDoneInOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		events := []string{
			`{"choices":[{"delta":{"content":"<think>checking the catalog</think>"}}]}`,
			`{"choices":[{"delta":{"content":"It is a flash defect."}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"lookup","arguments":"{\"part\""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"gate\"}"}}]}}]}`,
			`{"choices":[{"delta":{}}],"usage":{"total_tokens":17}}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := c.GenerateStreaming(context.Background(), []model.Message{{Role: model.RoleUser, Content: "what defect is this?"}}, nil)
	require.NoError(t, err)

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}

	require.NotEmpty(t, chunks)
	assert.Equal(t, ChunkThink, chunks[0].Type)
	assert.Equal(t, "checking the catalog", chunks[0].Text)
	assert.Equal(t, ChunkText, chunks[1].Type)
	assert.Equal(t, "It is a flash defect.", chunks[1].Text)

	last := chunks[len(chunks)-1]
	assert.Equal(t, ChunkDone, last.Type)
	assert.Equal(t, 17, last.Tokens)

	var sawToolCall bool
	for _, ch := range chunks {
		if ch.Type == ChunkToolCall {
			sawToolCall = true
			assert.Equal(t, "lookup", ch.ToolCall.Name)
			assert.Equal(t, "gate", ch.ToolCall.Arguments["part"])
		}
	}
	assert.True(t, sawToolCall)
}
