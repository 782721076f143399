package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DialectSQLite, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	st := newTestStore(t)
	w := NewWriter(Config{FlushInterval: 20 * time.Millisecond, BatchSize: 100}, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Record(model.AuditEvent{ThreadID: "th-1", EventType: model.EventTurnStarted})
	w.Record(model.AuditEvent{ThreadID: "th-1", EventType: model.EventTurnCompleted})

	require.Eventually(t, func() bool {
		events, err := st.ListAuditEvents(context.Background(), "th-1")
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	w.Stop()
}

func TestWriter_FlushesOnBatchSize(t *testing.T) {
	st := newTestStore(t)
	w := NewWriter(Config{FlushInterval: time.Hour, BatchSize: 3}, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	for i := 0; i < 3; i++ {
		w.Record(model.AuditEvent{ThreadID: "th-2", EventType: model.EventToolCalled})
	}

	require.Eventually(t, func() bool {
		events, err := st.ListAuditEvents(context.Background(), "th-2")
		return err == nil && len(events) == 3
	}, time.Second, 10*time.Millisecond)

	w.Stop()
}

func TestWriter_StopDrainsPendingEvents(t *testing.T) {
	st := newTestStore(t)
	w := NewWriter(Config{FlushInterval: time.Hour, BatchSize: 100}, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Record(model.AuditEvent{ThreadID: "th-3", EventType: model.EventRatingSubmitted})
	w.Stop()

	events, err := st.ListAuditEvents(context.Background(), "th-3")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriter_RecordDoesNotBlockWhenQueueFull(t *testing.T) {
	st := newTestStore(t)
	w := NewWriter(Config{FlushInterval: time.Hour, BatchSize: 1000, QueueSize: 1}, st)
	// Never started: queue fills immediately and Record must not block.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			w.Record(model.AuditEvent{ThreadID: "th-4", EventType: model.EventTurnFailed})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
}
