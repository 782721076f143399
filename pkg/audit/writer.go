// Package audit implements the Session/Audit Log (C9): best-effort,
// batched persistence of turn lifecycle events (spec.md §4.9). A failed or
// delayed audit write never blocks or fails the turn it describes — the
// caller only ever hands an event to a buffered channel.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// Config tunes the batched writer.
type Config struct {
	// FlushInterval is the maximum time an event waits before being
	// flushed, even if the batch hasn't reached BatchSize (spec.md §4.9:
	// "best-effort async, batched every ≤1s").
	FlushInterval time.Duration
	BatchSize     int
	// QueueSize bounds the channel buffer; Record drops the event and logs
	// a warning rather than blocking the caller when the queue is full.
	QueueSize int
}

func (c *Config) SetDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
}

// Writer batches AuditEvents into st's audit_log table. Start must be
// called before Record; Stop drains the queue into a final flush.
type Writer struct {
	cfg   Config
	store *store.Store

	queue chan model.AuditEvent
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewWriter builds a Writer backed by st.
func NewWriter(cfg Config, st *store.Store) *Writer {
	cfg.SetDefaults()
	return &Writer{
		cfg:   cfg,
		store: st,
		queue: make(chan model.AuditEvent, cfg.QueueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the background flush loop. Call once.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the flush loop to drain its queue and exit, blocking until
// it does.
func (w *Writer) Stop() {
	close(w.done)
	w.wg.Wait()
}

// Record enqueues an event for the next flush. Non-blocking: if the queue
// is full the event is dropped and logged, since an audit write must never
// back-pressure the turn that produced it.
func (w *Writer) Record(ev model.AuditEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	select {
	case w.queue <- ev:
	default:
		slog.Warn("audit queue full, dropping event",
			"thread_id", ev.ThreadID, "turn_id", ev.TurnID, "event_type", ev.EventType)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.AuditEvent, 0, w.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-w.queue:
			batch = append(batch, ev)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			w.drain(&batch)
			flush()
			return
		case <-ctx.Done():
			w.drain(&batch)
			flush()
			return
		}
	}
}

// drain empties whatever is already queued without blocking, so Stop's
// final flush captures events recorded right before shutdown.
func (w *Writer) drain(batch *[]model.AuditEvent) {
	for {
		select {
		case ev := <-w.queue:
			*batch = append(*batch, ev)
		default:
			return
		}
	}
}

func (w *Writer) flush(ctx context.Context, batch []model.AuditEvent) {
	for _, ev := range batch {
		if err := w.store.AppendAuditEvent(ctx, ev); err != nil {
			slog.Warn("failed to persist audit event",
				"thread_id", ev.ThreadID, "turn_id", ev.TurnID, "event_type", ev.EventType, "error", err)
		}
	}
}
