package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
	"github.com/bestbox-ai/orchestrator/pkg/tool"
)

// fakeLLM replays a scripted sequence of Generate/GenerateStreaming
// responses, one per call, mirroring fakeLLM in pkg/contextwindow's tests.
type fakeLLM struct {
	generateText []string
	genIdx       int

	streams   [][]llm.StreamChunk
	streamIdx int
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

func erpPersona() PersonaSet {
	return PersonaSet{
		model.AgentERP: {
			Agent:        model.AgentERP,
			SystemPrompt: "You help with ERP questions.",
			ToolNames:    []string{"erp_count_purchase_orders"},
		},
	}
}

func countTool() tool.Tool {
	return tool.Tool{
		Spec: model.ToolSpec{
			Name: "erp_count_purchase_orders", PermissionTag: "erp:read",
			SideEffectClass: model.SideEffectRead,
		},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"count": 3}, nil
		},
	}
}

func writeEmailTool() tool.Tool {
	return tool.Tool{
		Spec: model.ToolSpec{
			Name: "oa_send_email", SideEffectClass: model.SideEffectWrite,
		},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"status": "sent"}, nil
		},
	}
}

func newRuntime(t *testing.T, client *fakeLLM, catalog *tool.Catalog, personas PersonaSet, cfg Config) *Runtime {
	t.Helper()
	compactor := contextwindow.New(contextwindow.Config{}, nil)
	router := NewRouter(client, rag.NewCatalog(rag.DefaultMoldLexicon()))
	return New(client, catalog, compactor, nil, router, personas, cfg)
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for graph events")
		}
	}
}

func TestRuntime_SimpleRoutedToolCall(t *testing.T) {
	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "erp_count_purchase_orders", map[string]any{"vendor": "V-001", "status": "open"}),
			textChunks("There are 3 open purchase orders from V-001 [T1]."),
		},
	}
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))

	rt := newRuntime(t, client, catalog, erpPersona(), Config{})
	state := checkpoint.NewState("th-1", "turn-1", "How many open purchase orders from vendor V-001?", "")
	uc := model.UserContext{UserID: "u1", Permissions: []string{"erp:read"}}

	events := drain(t, rt.Run(context.Background(), state, uc))

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventAct, EventObserve, EventAnswer, EventDone}, kinds)

	assert.Equal(t, checkpoint.PhaseDone, state.Phase)
	assert.Equal(t, 1, state.ToolCallCount)
	assert.Equal(t, string(model.AgentERP), state.CurrentAgent)

	last := state.Messages[len(state.Messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "[T1]")
}

func TestRuntime_PermissionDeniedToolNeverCallsHandler(t *testing.T) {
	called := false
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(tool.Tool{
		Spec: model.ToolSpec{Name: "erp_count_purchase_orders", PermissionTag: "erp:read", SideEffectClass: model.SideEffectRead},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{"count": 3}, nil
		},
	}))

	client := &fakeLLM{
		generateText: []string{`{"next": "erp"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "erp_count_purchase_orders", map[string]any{}),
			textChunks("I can't access that information for you."),
		},
	}
	rt := newRuntime(t, client, catalog, erpPersona(), Config{})
	state := checkpoint.NewState("th-1", "turn-2", "finance summary please", "")
	uc := model.UserContext{UserID: "u2"} // no erp:read

	events := drain(t, rt.Run(context.Background(), state, uc))
	assert.Equal(t, EventError, events[len(events)-1].Kind)
	assert.False(t, called)
	assert.Equal(t, checkpoint.PhaseFailed, state.Phase)
}

func TestRuntime_WriteToolRequiresApproval(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(writeEmailTool()))

	personas := PersonaSet{model.AgentOA: {Agent: model.AgentOA, SystemPrompt: "oa", ToolNames: []string{"oa_send_email"}}}
	client := &fakeLLM{
		generateText: []string{`{"next": "oa"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "oa_send_email", map[string]any{"to": "vendor@example.com"}),
		},
	}
	rt := newRuntime(t, client, catalog, personas, Config{})
	state := checkpoint.NewState("th-1", "turn-3", "Send the draft email.", "")
	uc := model.UserContext{UserID: "u3"}

	events := drain(t, rt.Run(context.Background(), state, uc))
	require.Len(t, events, 2)
	assert.Equal(t, EventAct, events[0].Kind)
	assert.Equal(t, EventAwaitingApproval, events[1].Kind)
	require.NotNil(t, events[1].Pending)
	assert.Equal(t, "oa_send_email", events[1].Pending.ToolName)
	assert.Equal(t, checkpoint.PhaseAwaitingHuman, state.Phase)

	client.streams = append(client.streams, textChunks("Done, the email has been sent."))
	approveEvents := drain(t, rt.Approve(context.Background(), state, uc, true))
	kinds := make([]EventKind, len(approveEvents))
	for i, e := range approveEvents {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []EventKind{EventObserve, EventAnswer, EventDone}, kinds)
	assert.Equal(t, checkpoint.PhaseDone, state.Phase)
}

func TestRuntime_ApprovalDeniedProducesCancellation(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(writeEmailTool()))
	personas := PersonaSet{model.AgentOA: {Agent: model.AgentOA, SystemPrompt: "oa", ToolNames: []string{"oa_send_email"}}}

	client := &fakeLLM{
		generateText: []string{`{"next": "oa"}`},
		streams: [][]llm.StreamChunk{
			toolCallChunks("call-1", "oa_send_email", map[string]any{"to": "vendor@example.com"}),
		},
	}
	rt := newRuntime(t, client, catalog, personas, Config{})
	state := checkpoint.NewState("th-1", "turn-4", "Send the draft email.", "")
	uc := model.UserContext{UserID: "u4"}
	drain(t, rt.Run(context.Background(), state, uc))
	require.Equal(t, checkpoint.PhaseAwaitingHuman, state.Phase)

	client.streams = append(client.streams, textChunks("Okay, I won't send it."))
	events := drain(t, rt.Approve(context.Background(), state, uc, false))
	require.NotEmpty(t, events)
	assert.Equal(t, EventDone, events[len(events)-1].Kind)
	assert.Equal(t, checkpoint.PhaseDone, state.Phase)

	found := false
	for _, m := range state.Messages {
		if m.Role == model.RoleToolResult && m.ToolName == "oa_send_email" {
			assert.Contains(t, m.Content, "permission_denied")
			found = true
		}
	}
	assert.True(t, found)
}

func TestRuntime_ToolCallLimitForcesAnswer(t *testing.T) {
	catalog := tool.NewCatalog()
	require.NoError(t, catalog.Register(countTool()))

	// Exactly limit tool-call streams, then a text stream: once the limit
	// is reached the next call is made without tool specs and with a
	// forcing system message, and its reply ends the turn.
	streams := [][]llm.StreamChunk{}
	for i := 0; i < 2; i++ {
		streams = append(streams, toolCallChunks("call", "erp_count_purchase_orders", map[string]any{}))
	}
	streams = append(streams, textChunks("Final answer after the limit."))

	client := &fakeLLM{generateText: []string{`{"next": "erp"}`}, streams: streams}
	rt := newRuntime(t, client, catalog, erpPersona(), Config{MaxToolCallsPerTurn: 2})
	state := checkpoint.NewState("th-1", "turn-5", "loop forever", "")
	uc := model.UserContext{UserID: "u5", Permissions: []string{"erp:read"}}

	events := drain(t, rt.Run(context.Background(), state, uc))
	assert.Equal(t, EventDone, events[len(events)-1].Kind)
	assert.Equal(t, 2, state.ToolCallCount)

	foundForced := false
	for _, m := range state.Messages {
		if m.Role == model.RoleSystem && m.Content != "" {
			foundForced = true
		}
	}
	assert.True(t, foundForced)
}

func TestRouter_FallsBackToMoldOnRepeatedParseFailure(t *testing.T) {
	client := &fakeLLM{generateText: []string{"not json", "still not json"}}
	router := NewRouter(client, rag.NewCatalog(rag.DefaultMoldLexicon()))

	agent, err := router.Route(context.Background(), "披锋怎么解决？", nil)
	require.NoError(t, err)
	assert.Equal(t, model.AgentMold, agent)
}

func TestRouter_FallsBackToGenericWhenNoLexiconMatch(t *testing.T) {
	client := &fakeLLM{generateText: []string{"garbage", "garbage again"}}
	router := NewRouter(client, rag.NewCatalog(rag.DefaultMoldLexicon()))

	agent, err := router.Route(context.Background(), "what's the weather like", nil)
	require.NoError(t, err)
	assert.Equal(t, model.AgentERP, agent)
}

func TestRouter_ParsesStructuredResponse(t *testing.T) {
	client := &fakeLLM{generateText: []string{`{"next": "crm"}`}}
	router := NewRouter(client, nil)

	agent, err := router.Route(context.Background(), "show me open leads", nil)
	require.NoError(t, err)
	assert.Equal(t, model.AgentCRM, agent)
}
