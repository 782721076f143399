// Package graph implements the Agent Graph Runtime (C6): the
// supervisor-to-specialist state machine of spec.md §4.6.
//
// Per the redesign flag calling out the source's coroutine-based execution,
// this runtime is modeled as an explicit state machine advanced one step at
// a time rather than a generator/coroutine: every suspension point (an LLM
// call, a tool invocation, a wait for human approval) is a plain function
// call that returns before the next step is chosen, and the entire state
// needed to resume lives in checkpoint.State. The only goroutine in this
// package exists to turn that step loop into a channel of Events for a
// streaming HTTP caller — it is not part of the control flow itself.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/tool"
)

// Runtime wires together the graph's collaborators: the router, the
// specialist personas and their tool subsets, the context compactor (C5),
// and the checkpoint hooks (C7).
type Runtime struct {
	llm         llm.Client
	tools       *tool.Catalog
	compactor   *contextwindow.Compactor
	checkpoints *checkpoint.Hooks
	router      *Router
	personas    PersonaSet
	cfg         Config
	tracer      *observability.Tracer
	metrics     *observability.Metrics
}

// New wires a Runtime. checkpoints may be nil to disable checkpointing
// (every Hooks method is a no-op on a nil receiver).
func New(client llm.Client, tools *tool.Catalog, compactor *contextwindow.Compactor, checkpoints *checkpoint.Hooks, router *Router, personas PersonaSet, cfg Config) *Runtime {
	cfg.SetDefaults()
	return &Runtime{
		llm: client, tools: tools, compactor: compactor,
		checkpoints: checkpoints, router: router, personas: personas, cfg: cfg,
	}
}

// WithObservability attaches a tracer and metrics recorder to the runtime.
// Either may be nil; both tolerate nil receivers.
func (rt *Runtime) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *Runtime {
	rt.tracer = tracer
	rt.metrics = metrics
	return rt
}

// Run advances state until it reaches a terminal phase (done, failed) or
// suspends on awaiting_human, emitting Events in total order as it goes.
// The returned channel is closed exactly once, on exit.
func (rt *Runtime) Run(ctx context.Context, state *checkpoint.State, uc model.UserContext) <-chan Event {
	events := make(chan Event, 32)
	go func() {
		defer close(events)
		start := time.Now()
		ctx, span := rt.tracer.StartSpecialistTurn(ctx, state.CurrentAgent, state.ThreadID, state.TurnID, uc.UserID)
		defer span.End()
		rt.loop(ctx, state, uc, events)
		rt.metrics.RecordAgentCall(state.CurrentAgent, "specialist", time.Since(start))
		if state.Phase == checkpoint.PhaseFailed {
			rt.tracer.RecordError(span, errors.New(state.Error))
			rt.metrics.RecordAgentError(state.CurrentAgent, "specialist", "turn_failed")
		}
	}()
	return events
}

// loop is the state machine's single step-dispatch point. Each case
// performs exactly one unit of suspendable work (one LLM call, one tool
// call) and sets state.Phase for the next iteration — the "loop that
// advances one step at a time and yields on I/O" the redesign calls for.
func (rt *Runtime) loop(ctx context.Context, state *checkpoint.State, uc model.UserContext, events chan<- Event) {
	for {
		if err := ctx.Err(); err != nil {
			rt.fail(ctx, state, events, apperr.Wrap(apperr.KindDeadlineExceeded, err, "graph: turn deadline exceeded"))
			return
		}

		switch state.Phase {
		case checkpoint.PhaseRouting:
			if err := rt.stepRouting(ctx, state); err != nil {
				rt.fail(ctx, state, events, err)
				return
			}

		case checkpoint.PhaseExecuting:
			finished, err := rt.stepExecuting(ctx, state, uc, events)
			if err != nil {
				rt.fail(ctx, state, events, err)
				return
			}
			if state.Phase == checkpoint.PhaseAwaitingHuman {
				rt.checkpoints.OnToolApprovalRequired(ctx, state, state.PendingTool)
				events <- Event{Kind: EventAwaitingApproval, Agent: model.AgentName(state.CurrentAgent), Pending: state.PendingTool}
				return
			}
			if finished {
				state.WithPhase(checkpoint.PhaseAnswering)
			}

		case checkpoint.PhaseAnswering:
			state.WithPhase(checkpoint.PhaseDone)

		case checkpoint.PhaseDone:
			rt.checkpoints.OnComplete(ctx, state)
			events <- Event{Kind: EventDone, Agent: model.AgentName(state.CurrentAgent)}
			return

		case checkpoint.PhaseFailed:
			events <- Event{Kind: EventError, Agent: model.AgentName(state.CurrentAgent), Err: errors.New(state.Error)}
			return

		default:
			rt.fail(ctx, state, events, apperr.New(apperr.KindInternal, "graph: unknown phase %q", state.Phase))
			return
		}
	}
}

func (rt *Runtime) fail(ctx context.Context, state *checkpoint.State, events chan<- Event, err error) {
	state.WithError(err)
	rt.checkpoints.OnError(ctx, state, err)
	events <- Event{Kind: EventError, Agent: model.AgentName(state.CurrentAgent), Err: err}
}

// stepRouting runs the supervisor decision once and advances to executing.
func (rt *Runtime) stepRouting(ctx context.Context, state *checkpoint.State) error {
	rt.checkpoints.BeforeLLMCall(ctx, state)

	var agent model.AgentName
	err := withRetry(ctx, rt.cfg, isTransient, func() error {
		var routeErr error
		agent, routeErr = rt.router.Route(ctx, state.Query, state.Messages)
		return routeErr
	})
	if err != nil {
		return err
	}

	state.CurrentAgent = string(agent)
	state.WithPhase(checkpoint.PhaseExecuting)
	rt.checkpoints.AfterLLMCall(ctx, state)
	return nil
}

// stepExecuting runs one iteration of a specialist's micro-loop (spec.md
// §4.6 steps 1-3): one LLM call, and if it asked for a tool, one tool
// invocation. It returns finished=true when the response is a final
// answer, appended to state.Messages as the turn's assistant message.
func (rt *Runtime) stepExecuting(ctx context.Context, state *checkpoint.State, uc model.UserContext, events chan<- Event) (bool, error) {
	agent := model.AgentName(state.CurrentAgent)
	persona, ok := rt.personas[agent]
	if !ok {
		return false, apperr.New(apperr.KindInternal, "graph: no persona wired for agent %q", agent)
	}

	forceAnswer := state.ToolCallCount >= rt.cfg.MaxToolCallsPerTurn
	specs := rt.specialistToolSpecs(persona)
	if forceAnswer {
		specs = nil
		state.Append(model.Message{
			ThreadID: state.ThreadID, TurnID: state.TurnID, Role: model.RoleSystem,
			Content: "The tool-call limit for this turn has been reached. Answer now using only what you already have.",
		})
	}

	compacted, err := rt.compactor.Compact(ctx, state.Messages)
	if err != nil {
		return false, err
	}
	prompt := make([]model.Message, 0, len(compacted)+1)
	prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: persona.SystemPrompt})
	prompt = append(prompt, compacted...)

	rt.checkpoints.BeforeLLMCall(ctx, state)

	var text string
	var reasoning []model.ReasoningStep
	var calls []llm.ToolCall
	err = withRetry(ctx, rt.cfg, isTransient, func() error {
		ch, genErr := rt.llm.GenerateStreaming(ctx, prompt, specs)
		if genErr != nil {
			return genErr
		}
		text, reasoning, calls, genErr = rt.consumeSpecialistStream(ch, events, agent)
		return genErr
	})
	if err != nil {
		return false, err
	}
	rt.checkpoints.AfterLLMCall(ctx, state)

	assistantMsg := model.Message{
		ThreadID: state.ThreadID, TurnID: state.TurnID, Role: model.RoleAssistant,
		Content: text, ReasoningTrace: reasoning,
	}

	if len(calls) == 0 || forceAnswer {
		state.Append(assistantMsg)
		return true, nil
	}

	// Only the first tool call in a response is dispatched; a model that
	// emits several in one turn re-requests the rest on the next
	// iteration once the first result is back in context.
	call := calls[0]
	assistantMsg.ToolName = call.Name
	assistantMsg.ToolArgs = call.Arguments
	assistantMsg.ToolCallID = call.ID
	state.Append(assistantMsg)
	events <- Event{Kind: EventAct, Agent: agent, ToolName: call.Name, ToolCallID: call.ID, ToolArgs: call.Arguments}

	return rt.invokeTool(ctx, state, uc, agent, call, events)
}

// invokeTool dispatches call through the tool catalog, records the result
// (or the pending approval) into state, and emits the matching observe
// event.
func (rt *Runtime) invokeTool(ctx context.Context, state *checkpoint.State, uc model.UserContext, agent model.AgentName, call llm.ToolCall, events chan<- Event) (bool, error) {
	return rt.invokeToolPreApproved(ctx, state, uc, agent, call, false, events)
}

func (rt *Runtime) invokeToolPreApproved(ctx context.Context, state *checkpoint.State, uc model.UserContext, agent model.AgentName, call llm.ToolCall, preApproved bool, events chan<- Event) (bool, error) {
	state.WithPhase(checkpoint.PhaseAwaitingTool)
	if err := rt.checkpoints.BeforeToolExecution(ctx, state, call.Name); err != nil {
		return false, err
	}

	envelope, pending, err := rt.tools.Invoke(ctx, call.ID, call.Name, uc, call.Arguments, preApproved)
	if err != nil {
		return false, err
	}

	if pending != nil {
		state.WithPhase(checkpoint.PhaseAwaitingHuman).WithPendingTool(pending)
		return false, nil
	}
	state.WithPhase(checkpoint.PhaseExecuting)

	resultMsg := model.Message{
		ThreadID: state.ThreadID, TurnID: state.TurnID, Role: model.RoleToolResult,
		ToolName: call.Name, ToolCallID: call.ID, Content: envelopeText(envelope),
	}
	state.Append(resultMsg)
	events <- Event{Kind: EventObserve, Agent: agent, ToolName: call.Name, ToolCallID: call.ID, ToolResult: envelope.Result}

	state.ToolCallCount++
	rt.checkpoints.AfterToolExecution(ctx, state, call.Name)
	state.Iteration++
	rt.checkpoints.OnIterationEnd(ctx, state, state.Iteration)
	return false, nil
}

// Approve resumes a turn parked in awaiting_human (spec.md §4.6, worked
// example 4). approved=true re-invokes the pending tool with the approval
// recorded, so Catalog.Invoke executes it instead of returning another
// PendingApproval; approved=false feeds back a denial envelope without
// ever calling the tool's handler, and the specialist loop continues from
// there so the model can produce a cancellation response.
func (rt *Runtime) Approve(ctx context.Context, state *checkpoint.State, uc model.UserContext, approved bool) <-chan Event {
	events := make(chan Event, 32)
	go func() {
		defer close(events)

		pending := state.PendingTool
		if pending == nil {
			rt.fail(ctx, state, events, apperr.New(apperr.KindInternal, "graph: approve called with no pending tool"))
			return
		}
		agent := model.AgentName(state.CurrentAgent)
		state.PendingTool = nil
		state.WithPhase(checkpoint.PhaseExecuting)

		call := llm.ToolCall{ID: pending.ToolCallID, Name: pending.ToolName, Arguments: pending.Args}
		if approved {
			if _, err := rt.invokeToolPreApproved(ctx, state, uc, agent, call, true, events); err != nil {
				rt.fail(ctx, state, events, err)
				return
			}
		} else {
			resultMsg := model.Message{
				ThreadID: state.ThreadID, TurnID: state.TurnID, Role: model.RoleToolResult,
				ToolName: call.Name, ToolCallID: call.ID,
				Content: envelopeText(tool.ErrorEnvelope(string(apperr.KindPermissionDenied), "user declined the pending approval")),
			}
			state.Append(resultMsg)
			events <- Event{Kind: EventObserve, Agent: agent, ToolName: call.Name, ToolCallID: call.ID}
			rt.checkpoints.AfterToolExecution(ctx, state, call.Name)
		}

		if state.Phase == checkpoint.PhaseAwaitingHuman {
			// The re-invoked tool produced another approval request
			// (a different write-class call chained off the first).
			rt.checkpoints.OnToolApprovalRequired(ctx, state, state.PendingTool)
			events <- Event{Kind: EventAwaitingApproval, Agent: agent, Pending: state.PendingTool}
			return
		}
		rt.loop(ctx, state, uc, events)
	}()
	return events
}

// consumeSpecialistStream drains ch, forwarding think/answer chunks as
// Events as they arrive so the caller can stream tokens live, and
// accumulating the final text, reasoning trace, and any tool calls.
func (rt *Runtime) consumeSpecialistStream(ch <-chan llm.StreamChunk, events chan<- Event, agent model.AgentName) (string, []model.ReasoningStep, []llm.ToolCall, error) {
	var text strings.Builder
	var reasoning []model.ReasoningStep
	var calls []llm.ToolCall

	for chunk := range ch {
		switch chunk.Type {
		case llm.ChunkThink:
			reasoning = append(reasoning, model.ReasoningStep{Kind: model.StepThink, Content: chunk.Text, Timestamp: time.Now()})
			events <- Event{Kind: EventThink, Agent: agent, Text: chunk.Text}
		case llm.ChunkText:
			text.WriteString(chunk.Text)
			events <- Event{Kind: EventAnswer, Agent: agent, Text: chunk.Text}
		case llm.ChunkToolCall:
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
		case llm.ChunkError:
			return "", nil, nil, chunk.Error
		case llm.ChunkDone:
		}
	}
	return text.String(), reasoning, calls, nil
}

func (rt *Runtime) specialistToolSpecs(persona Persona) []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(persona.ToolNames))
	for _, name := range persona.ToolNames {
		if t, ok := rt.tools.Get(name); ok {
			specs = append(specs, t.Spec)
		}
	}
	return specs
}

// envelopeText renders a tool Envelope as the JSON text stored on a
// tool_result message, the shape the LLM is shown directly (spec.md §4.2:
// "fed back to the LLM as {ok:false, error_kind, message}").
func envelopeText(e tool.Envelope) string {
	raw, err := json.Marshal(e)
	if err != nil {
		return `{"ok":false,"error":{"kind":"internal_error","message":"failed to encode tool result"}}`
	}
	return string(raw)
}
