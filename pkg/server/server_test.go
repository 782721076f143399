package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/audit"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/config"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/gpu"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
	"github.com/bestbox-ai/orchestrator/pkg/session"
	"github.com/bestbox-ai/orchestrator/pkg/store"
	"github.com/bestbox-ai/orchestrator/pkg/tool"
)

// fakeLLM replays scripted responses, mirroring pkg/session's own test fake.
type fakeLLM struct {
	generateText []string
	genIdx       int
	streams      [][]llm.StreamChunk
	streamIdx    int
}

func (f *fakeLLM) Generate(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (*llm.Result, error) {
	text := f.generateText[f.genIdx]
	f.genIdx++
	return &llm.Result{Text: text}, nil
}

func (f *fakeLLM) GenerateStreaming(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (<-chan llm.StreamChunk, error) {
	chunks := f.streams[f.streamIdx]
	f.streamIdx++
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func textChunks(text string) []llm.StreamChunk {
	return []llm.StreamChunk{
		{Type: llm.ChunkText, Text: text},
		{Type: llm.ChunkDone},
	}
}

func countTool() tool.Tool {
	return tool.Tool{
		Spec: model.ToolSpec{Name: "erp_count_purchase_orders", PermissionTag: "erp:read", SideEffectClass: model.SideEffectRead},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"count": 3}, nil
		},
	}
}

func newTestServer(t *testing.T, client *fakeLLM) *Server {
	t.Helper()
	st, err := store.Open(store.DialectSQLite, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))
	personas := graph.PersonaSet{
		model.AgentERP: {Agent: model.AgentERP, SystemPrompt: "erp", ToolNames: []string{"erp_count_purchase_orders"}},
	}

	mgr := checkpoint.NewManager(&checkpoint.Config{}, st)
	hooks := checkpoint.NewHooks(mgr)
	compactor := contextwindow.New(contextwindow.Config{}, nil)
	router := graph.NewRouter(client, rag.NewCatalog(rag.DefaultMoldLexicon()))
	rt := graph.New(client, catalog, compactor, hooks, router, personas, graph.Config{})

	auditWriter := audit.NewWriter(audit.Config{FlushInterval: 10 * time.Millisecond}, st)
	auditWriter.Start(context.Background())
	t.Cleanup(auditWriter.Stop)

	svc := session.New(st, mgr, rt, auditWriter)
	scheduler := gpu.New(gpu.Config{}, nil)

	return New(config.ServerConfig{Addr: ":0"}, svc, scheduler, nil, nil)
}

func TestHandleChatCompletions_NonStreaming(t *testing.T) {
	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams: [][]llm.StreamChunk{
			{{Type: llm.ChunkToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Name: "erp_count_purchase_orders", Arguments: map[string]any{}}}, {Type: llm.ChunkDone}},
			textChunks("There are 3 open purchase orders."),
		},
	}
	srv := newTestServer(t, client)

	body, _ := json.Marshal(chatCompletionsRequest{Messages: []chatMessage{{Role: "user", Content: "how many open POs?"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()

	srv.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["thread_id"])
}

func TestHandleChatCompletions_MissingUserMessage(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})

	body, _ := json.Marshal(chatCompletionsRequest{Messages: nil})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetThread_UnknownThread(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})

	req := httptest.NewRequest(http.MethodGet, "/v1/threads/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleRating_InvalidValue(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})

	body, _ := json.Marshal(map[string]string{"rating": "great"})
	req := httptest.NewRequest(http.MethodPost, "/v1/threads/t1/turns/turn1/rating", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGPUStatus(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{})

	req := httptest.NewRequest(http.MethodGet, "/v1/gpu/status", nil)
	rec := httptest.NewRecorder()

	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var statuses []gpu.DeviceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
}

func TestWriteAppError_MapsKindToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAppError(rec, apperr.New(apperr.KindPermissionDenied, "nope"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	writeAppError(rec, apperr.New(apperr.KindResourceBusy, "busy"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRoutePattern_FallsBackToRawPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/gpu/status", nil)
	assert.Equal(t, "/v1/gpu/status", routePattern(req))
}
