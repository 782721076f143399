// Package session implements the turn-lifecycle half of the Session/Audit
// Log (C9): opening a turn, driving it through the graph runtime (C6), and
// finalizing it into pkg/store once the graph reaches a terminal or
// suspended phase (spec.md §4.9, §2's flow: "C9 opens turn ... C9 finalizes
// turn").
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/audit"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// Service wires the graph runtime to durable thread/turn/audit storage.
type Service struct {
	store   *store.Store
	cps     *checkpoint.Manager
	rt      *graph.Runtime
	audit   *audit.Writer
	metrics *observability.Metrics
}

// New builds a Service.
func New(st *store.Store, cps *checkpoint.Manager, rt *graph.Runtime, auditWriter *audit.Writer) *Service {
	return &Service{store: st, cps: cps, rt: rt, audit: auditWriter}
}

// WithObservability attaches a metrics recorder. Nil tolerates a disabled
// recorder.
func (svc *Service) WithObservability(metrics *observability.Metrics) *Service {
	svc.metrics = metrics
	return svc
}

// StartTurn opens a turn on threadID (creating the thread first if empty or
// unseen) and drives it through the graph runtime, returning the event
// stream a caller can forward as SSE. The returned turnID lets the caller
// correlate a later approve/rating call.
func (svc *Service) StartTurn(ctx context.Context, uc model.UserContext, threadID, query string) (turnID string, events <-chan graph.Event, err error) {
	threadID, err = svc.ensureThread(ctx, uc, threadID)
	if err != nil {
		return "", nil, err
	}

	turnID = uuid.New().String()
	now := time.Now()
	turn := model.Turn{TurnID: turnID, ThreadID: threadID, InputText: query, StartedAt: now}
	if err := svc.store.CreateTurn(ctx, turn); err != nil {
		return "", nil, err
	}
	svc.audit.Record(model.AuditEvent{ThreadID: threadID, TurnID: turnID, EventType: model.EventTurnStarted,
		Payload: map[string]any{"user_id": uc.UserID, "org_id": uc.OrgID}, CreatedAt: now})

	state := checkpoint.NewState(threadID, turnID, query, "")
	raw := svc.rt.Run(ctx, state, uc)
	return turnID, svc.pipe(ctx, uc, state, raw), nil
}

// Approve resumes a turn parked on awaiting_human (spec.md worked example
// 4). It reloads the turn's checkpoint since the approval typically arrives
// on a separate HTTP request from the one that suspended it.
func (svc *Service) Approve(ctx context.Context, threadID, turnID string, approved bool) (<-chan graph.Event, error) {
	state, err := svc.cps.LoadCheckpoint(ctx, threadID, turnID)
	if err != nil {
		return nil, err
	}
	if !state.NeedsHumanInput() {
		return nil, apperr.New(apperr.KindInternal, "session: turn %q is not awaiting approval", turnID)
	}

	thread, err := svc.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	eventType := model.EventApprovalDenied
	if approved {
		eventType = model.EventApprovalGranted
	}
	svc.audit.Record(model.AuditEvent{ThreadID: threadID, TurnID: turnID, EventType: eventType})

	raw := svc.rt.Approve(ctx, state, thread.UserContext, approved)
	return svc.pipe(ctx, thread.UserContext, state, raw), nil
}

// Rate records a user's out-of-band quality signal on a completed turn
// (spec.md §6.1 supplemented endpoint; §4.9: "rating events may arrive
// minutes to days later").
func (svc *Service) Rate(ctx context.Context, threadID, turnID string, rating model.Rating) error {
	if err := svc.store.SetTurnRating(ctx, turnID, rating); err != nil {
		return err
	}
	svc.audit.Record(model.AuditEvent{ThreadID: threadID, TurnID: turnID, EventType: model.EventRatingSubmitted,
		Payload: map[string]any{"rating": string(rating)}})
	return nil
}

// ThreadView is the read model for `GET /v1/threads/{thread_id}`.
type ThreadView struct {
	Thread model.Thread
	Turns  []model.Turn
}

// GetThread returns a thread's status and its last lastN turns (0 means
// all turns).
func (svc *Service) GetThread(ctx context.Context, threadID string, lastN int) (ThreadView, error) {
	thread, err := svc.store.GetThread(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	turns, err := svc.store.ListTurnsByThread(ctx, threadID, lastN)
	if err != nil {
		return ThreadView{}, err
	}
	return ThreadView{Thread: thread, Turns: turns}, nil
}

func (svc *Service) ensureThread(ctx context.Context, uc model.UserContext, threadID string) (string, error) {
	if threadID != "" {
		if _, err := svc.store.GetThread(ctx, threadID); err == nil {
			return threadID, nil
		}
		// Falls through to create: an unrecognized thread_id starts a new
		// thread under that ID rather than erroring, so a caller-supplied
		// ID (e.g. a client-generated session key) just works.
	} else {
		threadID = uuid.New().String()
	}
	thread := model.Thread{ThreadID: threadID, UserContext: uc, Status: model.ThreadActive, CreatedAt: time.Now()}
	if err := svc.store.CreateThread(ctx, thread); err != nil {
		return "", err
	}
	svc.metrics.RecordSessionCreated(uc.OrgID)
	return threadID, nil
}

// pipe forwards every event from raw to the caller, finalizing the turn and
// thread in pkg/store the moment the graph reaches a terminal or suspended
// phase. The forwarding channel is closed exactly once raw closes.
func (svc *Service) pipe(ctx context.Context, uc model.UserContext, state *checkpoint.State, raw <-chan graph.Event) <-chan graph.Event {
	out := make(chan graph.Event, 32)
	go func() {
		defer close(out)
		for ev := range raw {
			out <- ev
			switch ev.Kind {
			case graph.EventDone:
				svc.finalize(ctx, state, model.ThreadActive, model.EventTurnCompleted)
			case graph.EventError:
				svc.finalize(ctx, state, model.ThreadFailed, model.EventTurnFailed)
			case graph.EventAwaitingApproval:
				svc.finalize(ctx, state, model.ThreadInterrupted, "")
			}
		}
	}()
	return out
}

func (svc *Service) finalize(ctx context.Context, state *checkpoint.State, threadStatus model.ThreadStatus, auditType model.EventType) {
	now := time.Now()
	turn := model.Turn{
		TurnID: state.TurnID, ThreadID: state.ThreadID, CurrentAgent: state.CurrentAgent,
		ToolCallCount: state.ToolCallCount, FinalAnswer: lastAssistantText(state),
	}
	if threadStatus != model.ThreadInterrupted {
		turn.EndedAt = &now
	}
	_ = svc.store.UpdateTurn(ctx, turn)
	_ = svc.store.UpdateThreadStatus(ctx, state.ThreadID, threadStatus)

	if auditType != "" {
		svc.audit.Record(model.AuditEvent{ThreadID: state.ThreadID, TurnID: state.TurnID, EventType: auditType, CreatedAt: now})
		svc.metrics.RecordSessionEvent(state.CurrentAgent, string(auditType))
	}
}

func lastAssistantText(state *checkpoint.State) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == model.RoleAssistant {
			return state.Messages[i].Content
		}
	}
	return ""
}
