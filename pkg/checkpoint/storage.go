package checkpoint

import (
	"context"
	"log/slog"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// Storage persists checkpoint State snapshots through pkg/store's
// compare-and-swap checkpoints table, keyed by (thread_id, turn_id). This
// replaces the session-state-blob layout the teacher used: the CAS write
// already gives each thread/turn a single authoritative row, so no
// secondary "pending executions" index is needed here.
type Storage struct {
	store *store.Store
}

// NewStorage creates a Storage backed by st.
func NewStorage(st *store.Store) *Storage {
	return &Storage{store: st}
}

// Save serializes state and writes it through the checkpoints table's CAS.
// A apperr.KindCheckpointConflict from a stale StepIndex is returned
// unwrapped so callers can distinguish it from a plain storage failure.
func (s *Storage) Save(ctx context.Context, state *State) error {
	if state == nil {
		return apperr.New(apperr.KindInternal, "cannot save nil checkpoint state")
	}
	snapshot, err := state.Serialize()
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "serialize checkpoint state")
	}

	cp := model.Checkpoint{
		ThreadID:      state.ThreadID,
		TurnID:        state.TurnID,
		StepIndex:     state.StepIndex,
		StateSnapshot: snapshot,
		CreatedAt:     state.CheckpointTime,
	}
	if err := s.store.SaveCheckpoint(ctx, cp); err != nil {
		return err
	}

	slog.Debug("saved checkpoint",
		"thread_id", state.ThreadID,
		"turn_id", state.TurnID,
		"phase", state.Phase,
		"step_index", state.StepIndex)
	return nil
}

// Load retrieves the latest checkpoint State for (threadID, turnID).
func (s *Storage) Load(ctx context.Context, threadID, turnID string) (*State, error) {
	cp, err := s.store.LoadCheckpoint(ctx, threadID, turnID)
	if err != nil {
		return nil, err
	}
	state, err := Deserialize(cp.StateSnapshot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "deserialize checkpoint")
	}
	return state, nil
}

// ListInterrupted returns the latest checkpoint for every thread currently
// in model.ThreadInterrupted status, for startup recovery
// (spec.md §4.7 resume-after-crash).
func (s *Storage) ListInterrupted(ctx context.Context) ([]*State, error) {
	threads, err := s.store.ListThreadsByStatus(ctx, model.ThreadInterrupted)
	if err != nil {
		return nil, err
	}

	var states []*State
	for _, th := range threads {
		cp, err := s.store.LoadLatestCheckpointForThread(ctx, th.ThreadID)
		if err != nil {
			// A thread may be interrupted between turns with no open
			// checkpoint yet; skip it rather than failing the whole scan.
			continue
		}
		state, err := Deserialize(cp.StateSnapshot)
		if err != nil {
			slog.Warn("failed to deserialize checkpoint during recovery scan",
				"thread_id", th.ThreadID, "error", err)
			continue
		}
		states = append(states, state)
	}
	return states, nil
}
