package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(store.DialectSQLite, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	cfg := &Config{}
	cfg.SetDefaults()
	return NewManager(cfg, st)
}

func TestManager_SaveAndLoadCheckpoint(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "what is invoice status?", "erp-specialist")
	state.WithPhase(PhaseExecuting)
	require.NoError(t, m.SaveCheckpoint(ctx, state))

	loaded, err := m.LoadCheckpoint(ctx, "th-1", "turn-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseExecuting, loaded.Phase)
	assert.Equal(t, "erp-specialist", loaded.CurrentAgent)
}

func TestManager_ResumeAfterCrash(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "create a PO", "erp-specialist")
	state.WithPhase(PhaseAwaitingTool)
	require.NoError(t, m.SaveCheckpoint(ctx, state))

	// Simulate a crash: reload as a fresh process would.
	resumed, err := m.LoadCheckpoint(ctx, "th-1", "turn-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingTool, resumed.Phase)
	assert.Equal(t, int64(1), resumed.StepIndex)

	// Resume continues from the loaded step, never restarting at zero.
	resumed.WithPhase(PhaseExecuting)
	require.NoError(t, m.SaveCheckpoint(ctx, resumed))
	assert.Equal(t, int64(2), resumed.StepIndex)
}

func TestManager_SaveCheckpoint_StaleStepConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "query", "agent")
	state.WithPhase(PhaseExecuting) // step 1
	require.NoError(t, m.SaveCheckpoint(ctx, state))
	state.WithPhase(PhaseAnswering) // step 2
	require.NoError(t, m.SaveCheckpoint(ctx, state))

	stale := NewState("th-1", "turn-1", "query", "agent")
	stale.WithPhase(PhaseExecuting) // step 1 again: superseded by step 2 above
	err := m.SaveCheckpoint(ctx, stale)
	require.Error(t, err)
	assert.Equal(t, apperr.KindCheckpointConflict, apperr.KindOf(err))
}

func TestManager_Disabled_SkipsWrites(t *testing.T) {
	st, err := store.Open(store.DialectSQLite, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	disabled := false
	cfg := &Config{Enabled: &disabled}
	cfg.SetDefaults()
	m := NewManager(cfg, st)

	state := NewState("th-1", "turn-1", "query", "agent")
	require.NoError(t, m.SaveCheckpoint(context.Background(), state))

	_, err = m.LoadCheckpoint(context.Background(), "th-1", "turn-1")
	require.Error(t, err)
}

func TestHooks_OnToolApprovalRequired_ParksAwaitingHuman(t *testing.T) {
	m := newTestManager(t)
	h := NewHooks(m)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "create a PO for $10k", "erp-specialist")
	pending := &model.PendingApproval{ToolCallID: "call-1", ToolName: "create_purchase_order", Reason: "write-class"}
	// The caller parks the state itself; the hook only persists it.
	state.WithPhase(PhaseAwaitingHuman).WithPendingTool(pending)
	h.OnToolApprovalRequired(ctx, state, pending)

	loaded, err := m.LoadCheckpoint(ctx, "th-1", "turn-1")
	require.NoError(t, err)
	assert.True(t, loaded.NeedsHumanInput())
	assert.Equal(t, "call-1", loaded.PendingTool.ToolCallID)
}

func TestHooks_BeforeToolExecution_PropagatesCASConflict(t *testing.T) {
	m := newTestManager(t)
	h := NewHooks(m)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "query", "agent")
	require.NoError(t, h.BeforeToolExecution(ctx, state, "get_invoice_status"))

	// A second, stale-state worker with an older in-memory StepIndex must
	// see the conflict surfaced rather than swallowed.
	stale := NewState("th-1", "turn-1", "query", "agent")
	err := h.BeforeToolExecution(ctx, stale, "get_invoice_status")
	require.Error(t, err)
	assert.Equal(t, apperr.KindCheckpointConflict, apperr.KindOf(err))
}

func TestHooks_OnComplete_WritesTerminalPhase(t *testing.T) {
	m := newTestManager(t)
	h := NewHooks(m)
	ctx := context.Background()

	state := NewState("th-1", "turn-1", "query", "agent")
	// The caller moves the state to PhaseDone; the hook only persists it.
	state.WithPhase(PhaseDone)
	h.OnComplete(ctx, state)

	loaded, err := m.LoadCheckpoint(ctx, "th-1", "turn-1")
	require.NoError(t, err)
	assert.True(t, loaded.IsTerminal())
	assert.Equal(t, PhaseDone, loaded.Phase)
}
