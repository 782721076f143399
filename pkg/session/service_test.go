package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/audit"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
	"github.com/bestbox-ai/orchestrator/pkg/store"
	"github.com/bestbox-ai/orchestrator/pkg/tool"
)

// fakeLLM replays scripted responses, mirroring pkg/graph's own test fake.
type fakeLLM struct {
	generateText []string
	genIdx       int
	streams      [][]llm.StreamChunk
	streamIdx    int
}

func (f *fakeLLM) Generate(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (*llm.Result, error) {
	if f.genIdx >= len(f.generateText) {
		return nil, errors.New("fakeLLM: no more scripted Generate responses")
	}
	text := f.generateText[f.genIdx]
	f.genIdx++
	return &llm.Result{Text: text}, nil
}

func (f *fakeLLM) GenerateStreaming(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (<-chan llm.StreamChunk, error) {
	if f.streamIdx >= len(f.streams) {
		return nil, errors.New("fakeLLM: no more scripted streaming responses")
	}
	chunks := f.streams[f.streamIdx]
	f.streamIdx++
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) ContextWindow() int { return 32768 }

func textChunks(s string) []llm.StreamChunk {
	return []llm.StreamChunk{{Type: llm.ChunkText, Text: s}, {Type: llm.ChunkDone}}
}

func toolCallChunks(id, name string, args map[string]any) []llm.StreamChunk {
	return []llm.StreamChunk{
		{Type: llm.ChunkToolCall, ToolCall: &llm.ToolCall{ID: id, Name: name, Arguments: args}},
		{Type: llm.ChunkDone},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DialectSQLite, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestService(t *testing.T, client *fakeLLM, catalog *tool.Catalog, personas graph.PersonaSet) (*Service, *store.Store) {
	t.Helper()
	st := newTestStore(t)

	mgr := checkpoint.NewManager(&checkpoint.Config{}, st)
	hooks := checkpoint.NewHooks(mgr)

	compactor := contextwindow.New(contextwindow.Config{}, nil)
	router := graph.NewRouter(client, rag.NewCatalog(rag.DefaultMoldLexicon()))
	rt := graph.New(client, catalog, compactor, hooks, router, personas, graph.Config{})

	auditWriter := audit.NewWriter(audit.Config{FlushInterval: 10 * time.Millisecond}, st)
	auditWriter.Start(context.Background())
	t.Cleanup(auditWriter.Stop)

	return New(st, mgr, rt, auditWriter), st
}

func drain(t *testing.T, ch <-chan graph.Event) []graph.Event {
	t.Helper()
	var out []graph.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for session events")
		}
	}
}

func erpPersona() graph.PersonaSet {
	return graph.PersonaSet{
		model.AgentERP: {Agent: model.AgentERP, SystemPrompt: "erp", ToolNames: []string{"erp_count_purchase_orders"}},
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

func writeEmailTool() tool.Tool {
	return tool.Tool{
		Spec: model.ToolSpec{Name: "oa_send_email", SideEffectClass: model.SideEffectWrite},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"status": "sent"}, nil
		},
	}
}

func TestService_StartTurn_CompletesAndPersists(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))

	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "erp_count_purchase_orders", map[string]any{}),
			textChunks("There are 3 open purchase orders [T1]."),
		},
	}
	svc, st := newTestService(t, client, catalog, erpPersona())
	uc := model.UserContext{UserID: "u1", Permissions: []string{"erp:read"}}

	turnID, events, err := svc.StartTurn(context.Background(), uc, "", "how many open POs?")
	require.NoError(t, err)
	got := drain(t, events)
	require.NotEmpty(t, got)
	assert.Equal(t, graph.EventDone, got[len(got)-1].Kind)

	turn, err := st.GetTurn(context.Background(), turnID)
	require.NoError(t, err)
	assert.NotNil(t, turn.EndedAt)
	assert.Contains(t, turn.FinalAnswer, "[T1]")
	assert.Equal(t, 1, turn.ToolCallCount)

	require.Eventually(t, func() bool {
		events, err := st.ListAuditEvents(context.Background(), turn.ThreadID)
		return err == nil && len(events) >= 2 // turn_start, turn_end
	}, time.Second, 10*time.Millisecond)
}

func TestService_ApproveResumesSuspendedTurn(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(writeEmailTool()))
	personas := graph.PersonaSet{model.AgentOA: {Agent: model.AgentOA, SystemPrompt: "oa", ToolNames: []string{"oa_send_email"}}}

	client := &fakeLLM{
		generateText: []string{`{"next": "oa"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "oa_send_email", map[string]any{"to": "vendor@example.com"}),
		},
	}
	svc, st := newTestService(t, client, catalog, personas)
	uc := model.UserContext{UserID: "u2"}

	turnID, events, err := svc.StartTurn(context.Background(), uc, "", "send the draft email")
	require.NoError(t, err)
	got := drain(t, events)
	require.Equal(t, graph.EventAwaitingApproval, got[len(got)-1].Kind)

	turn, err := st.GetTurn(context.Background(), turnID)
	require.NoError(t, err)
	thread, err := st.GetThread(context.Background(), turn.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadInterrupted, thread.Status)

	client.streams = append(client.streams, textChunks("Done, the email was sent."))
	approveEvents, err := svc.Approve(context.Background(), turn.ThreadID, turnID, true)
	require.NoError(t, err)
	resumed := drain(t, approveEvents)
	assert.Equal(t, graph.EventDone, resumed[len(resumed)-1].Kind)

	turn, err = st.GetTurn(context.Background(), turnID)
	require.NoError(t, err)
	assert.NotNil(t, turn.EndedAt)
}

func TestService_RateRecordsAuditEvent(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))
	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams:      [][]llm.StreamChunk{textChunks("3 open POs.")},
	}
	svc, st := newTestService(t, client, catalog, erpPersona())
	uc := model.UserContext{UserID: "u3", Permissions: []string{"erp:read"}}

	turnID, events, err := svc.StartTurn(context.Background(), uc, "", "how many?")
	require.NoError(t, err)
	drain(t, events)

	require.NoError(t, svc.Rate(context.Background(), "", turnID, model.RatingGood))
	turn, err := st.GetTurn(context.Background(), turnID)
	require.NoError(t, err)
	assert.Equal(t, model.RatingGood, turn.Rating)
}

func TestService_GetThreadReturnsTurns(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))
	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams:      [][]llm.StreamChunk{textChunks("3 open POs.")},
	}
	svc, _ := newTestService(t, client, catalog, erpPersona())
	uc := model.UserContext{UserID: "u4", Permissions: []string{"erp:read"}}

	turnID, events, err := svc.StartTurn(context.Background(), uc, "", "how many?")
	require.NoError(t, err)
	drain(t, events)

	turn, err := newTestServiceThread(t, svc, turnID)
	require.NoError(t, err)

	view, err := svc.GetThread(context.Background(), turn, 10)
	require.NoError(t, err)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, turnID, view.Turns[0].TurnID)
}

// newTestServiceThread looks up a turn's thread_id by reaching into the
// service's own store — tests have no other handle on the thread_id
// StartTurn generated internally.
func newTestServiceThread(t *testing.T, svc *Service, turnID string) (string, error) {
	t.Helper()
	turn, err := svc.store.GetTurn(context.Background(), turnID)
	if err != nil {
		return "", err
	}
	return turn.ThreadID, nil
}
