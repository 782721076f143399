package checkpoint

import (
	"context"
	"log/slog"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// Manager orchestrates checkpoint persistence and recovery for the graph
// runtime (spec.md §4.7).
type Manager struct {
	config  *Config
	storage *Storage
	tracer  *observability.Tracer
}

// NewManager creates a checkpoint Manager backed by st.
func NewManager(cfg *Config, st *store.Store) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()
	return &Manager{
		config:  cfg,
		storage: NewStorage(st),
	}
}

// WithObservability attaches a tracer used to span checkpoint saves. Nil
// tolerates a disabled tracer.
func (m *Manager) WithObservability(tracer *observability.Tracer) *Manager {
	m.tracer = tracer
	return m
}

// IsEnabled returns whether checkpointing is enabled.
func (m *Manager) IsEnabled() bool {
	return m.config.IsEnabled()
}

// SaveCheckpoint persists a checkpoint. CAS conflicts (apperr.KindCheckpointConflict)
// are returned to the caller unwrapped since they signal a real race the
// graph runtime must react to; any other failure is still returned so
// callers can decide whether to log-and-continue or propagate.
func (m *Manager) SaveCheckpoint(ctx context.Context, state *State) error {
	if !m.IsEnabled() {
		return nil
	}
	return m.storage.Save(ctx, state)
}

// LoadCheckpoint retrieves the checkpoint for (threadID, turnID).
func (m *Manager) LoadCheckpoint(ctx context.Context, threadID, turnID string) (*State, error) {
	return m.storage.Load(ctx, threadID, turnID)
}

// RecoverOnStartup scans for interrupted threads and invokes resume for
// each one eligible under the configured recovery policy.
func (m *Manager) RecoverOnStartup(ctx context.Context, resume func(ctx context.Context, state *State) error) error {
	if !m.config.ShouldAutoResume() {
		return nil
	}
	states, err := m.storage.ListInterrupted(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "scan interrupted threads for recovery")
	}

	timeout := m.config.RecoveryTimeout()
	for _, state := range states {
		if state.IsExpired(timeout) {
			slog.Warn("skipping expired checkpoint on recovery",
				"thread_id", state.ThreadID, "turn_id", state.TurnID, "phase", state.Phase)
			continue
		}
		if state.NeedsHumanInput() {
			// Parked on an explicit human decision; never auto-resumed.
			continue
		}
		if err := resume(ctx, state); err != nil {
			slog.Warn("failed to resume thread on startup recovery",
				"thread_id", state.ThreadID, "turn_id", state.TurnID, "error", err)
		}
	}
	return nil
}

// Config returns the checkpoint configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// ShouldCheckpointAtStep returns whether to checkpoint at the given graph step.
func (m *Manager) ShouldCheckpointAtStep(step int64) bool {
	return m.config.ShouldCheckpointAtStep(step)
}

// ShouldCheckpointAfterTools returns whether to checkpoint after tool execution.
func (m *Manager) ShouldCheckpointAfterTools() bool {
	return m.config.ShouldCheckpointAfterTools()
}

// ShouldCheckpointBeforeLLM returns whether to checkpoint before LLM calls.
func (m *Manager) ShouldCheckpointBeforeLLM() bool {
	return m.config.ShouldCheckpointBeforeLLM()
}

// Hooks provides the graph runtime's checkpoint integration points, one per
// phase transition. Each hook is best-effort: a failed save is logged but
// never aborts the turn in progress, except where the caller explicitly
// needs to react to a CAS conflict (see BeforeToolExecution).
type Hooks struct {
	manager *Manager
}

// NewHooks creates Hooks wrapping manager.
func NewHooks(manager *Manager) *Hooks {
	if manager == nil {
		return nil
	}
	return &Hooks{manager: manager}
}

func (h *Hooks) save(ctx context.Context, state *State, op string) {
	_, span := h.manager.tracer.StartCheckpoint(ctx, state.ThreadID, op)
	defer span.End()
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		h.manager.tracer.RecordError(span, err)
		slog.Warn("failed to save checkpoint",
			"thread_id", state.ThreadID, "turn_id", state.TurnID, "op", op, "error", err)
	}
}

// BeforeLLMCall checkpoints before an LLM call, when configured to do so.
// The caller (pkg/graph) owns state.Phase; a hook only persists whatever
// phase is already set, regardless of whether checkpointing is enabled.
func (h *Hooks) BeforeLLMCall(ctx context.Context, state *State) {
	if h == nil || !h.manager.ShouldCheckpointBeforeLLM() {
		return
	}
	h.save(ctx, state, "before_llm_call")
}

// AfterLLMCall always checkpoints after an LLM response, when enabled, since
// the router's routing decision and any emitted tool calls are otherwise
// unrecoverable work.
func (h *Hooks) AfterLLMCall(ctx context.Context, state *State) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	h.save(ctx, state, "after_llm_call")
}

// BeforeToolExecution checkpoints before a tool runs. The CAS conflict
// return is propagated to the caller: if another worker has already moved
// this turn past this step, this worker must stop executing the tool rather
// than double-run it.
func (h *Hooks) BeforeToolExecution(ctx context.Context, state *State, toolName string) error {
	if h == nil || !h.manager.IsEnabled() {
		return nil
	}
	if err := h.manager.SaveCheckpoint(ctx, state); err != nil {
		if apperr.KindOf(err) == apperr.KindCheckpointConflict {
			return err
		}
		slog.Warn("failed to save pre-tool checkpoint",
			"thread_id", state.ThreadID, "turn_id", state.TurnID, "tool", toolName, "error", err)
	}
	return nil
}

// AfterToolExecution checkpoints after a tool call completes, when
// configured. It only persists the snapshot: state.Phase and
// state.ToolCallCount are graph invariants (spec.md §3) the caller must
// advance itself, independent of whether checkpointing is even enabled.
func (h *Hooks) AfterToolExecution(ctx context.Context, state *State, toolName string) {
	if h == nil || !h.manager.ShouldCheckpointAfterTools() {
		return
	}
	h.save(ctx, state, "after_tool_execution")
}

// OnToolApprovalRequired checkpoints the turn into awaiting_human with the
// pending approval recorded, so a later approve/deny call can resume it. The
// caller sets state.Phase/state.PendingTool itself before invoking this hook;
// it only persists.
func (h *Hooks) OnToolApprovalRequired(ctx context.Context, state *State, pending *model.PendingApproval) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	h.save(ctx, state, "on_tool_approval_required")
}

// OnIterationEnd checkpoints at an interval boundary. state.Iteration is
// advanced by the caller; this only marks the checkpoint type and persists.
func (h *Hooks) OnIterationEnd(ctx context.Context, state *State, iteration int) {
	if h == nil || !h.manager.ShouldCheckpointAtStep(int64(iteration)) {
		return
	}
	state.WithType(TypeInterval)
	h.save(ctx, state, "on_iteration_end")
}

// OnError checkpoints a failure snapshot. The caller marks state.WithError
// itself before invoking this hook; it only persists.
func (h *Hooks) OnError(ctx context.Context, state *State, err error) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	h.save(ctx, state, "on_error")
}

// OnComplete writes the terminal checkpoint for a successfully finished turn.
// The caller transitions state.Phase to PhaseDone itself before invoking
// this hook; it only persists.
func (h *Hooks) OnComplete(ctx context.Context, state *State) {
	if h == nil || !h.manager.IsEnabled() {
		return
	}
	h.save(ctx, state, "on_complete")
}
