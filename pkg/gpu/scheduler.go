package gpu

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// Scheduler arbitrates exclusive access to GPU devices across contended job
// classes (spec.md §4.8). One device entry is created lazily per gpu_id the
// first time it's acquired or declared in Config.
type Scheduler struct {
	cfg     Config
	metrics *Metrics

	mu      sync.Mutex
	devices map[string]*device
}

// New builds a Scheduler. metrics may be nil to disable Prometheus export.
func New(cfg Config, metrics *Metrics) *Scheduler {
	cfg.SetDefaults()
	s := &Scheduler{cfg: cfg, metrics: metrics, devices: make(map[string]*device)}
	for _, d := range cfg.Devices {
		s.device(d.ID)
	}
	return s
}

// device is one GPU's exclusive-lock state. sem is the actual mutual-
// exclusion primitive (weight 1, per spec.md §4.8's "golang.org/x/sync/
// semaphore per (gpu_id, class-pair)"); waiting is a priority-ordered queue
// consulted only to decide who gets to retry sem.TryAcquire next — the
// semaphore itself, not the queue, is what guarantees the invariant holds
// even if this bookkeeping has a bug.
type device struct {
	id  string
	sem *semaphore.Weighted

	mu      sync.Mutex
	holder  *HolderInfo
	waiting []*waiter
}

type waiter struct {
	class    Class
	priority int
	seq      int64
	turn     chan struct{}
}

var seqCounter int64

func (s *Scheduler) device(gpuID string) *device {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[gpuID]
	if !ok {
		d = &device{id: gpuID, sem: semaphore.NewWeighted(1)}
		s.devices[gpuID] = d
	}
	return d
}

// Lease is a held GPU slot. Callers must Release it on every exit path,
// including error paths — scoped acquisition via defer is the intended
// usage (spec.md §5: "holders must release even on failure").
type Lease struct {
	ID    string
	GPUID string
	Class Class

	dev        *device
	acquiredAt time.Time
	released   atomic.Bool
}

// Acquire blocks until gpuID's lock for class is available, priority is
// served ahead of lower-priority waiters already queued (FIFO within a
// priority level), or cfg.AcquireTimeout elapses — whichever is sooner —
// returning apperr.KindResourceBusy on timeout per spec.md §4.8.
func (s *Scheduler) Acquire(ctx context.Context, class Class, gpuID string, priority int) (*Lease, error) {
	d := s.device(gpuID)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()

	if d.sem.TryAcquire(1) {
		return s.grant(d, class), nil
	}

	w := &waiter{class: class, priority: priority, seq: atomic.AddInt64(&seqCounter, 1), turn: make(chan struct{}, 1)}
	d.mu.Lock()
	d.waiting = append(d.waiting, w)
	s.reportQueueDepth(d)
	d.mu.Unlock()

	defer s.removeWaiter(d, w)

	for {
		select {
		case <-w.turn:
			if d.sem.TryAcquire(1) {
				return s.grant(d, class), nil
			}
			// Lost a race with a fresh Acquire's TryAcquire; wait for the
			// next release notification.
		case <-ctx.Done():
			if s.metrics != nil {
				s.metrics.recordTimeout(gpuID, class)
			}
			return nil, apperr.New(apperr.KindResourceBusy, "gpu: acquire %s on %q timed out waiting for the lock", class, gpuID)
		}
	}
}

func (s *Scheduler) grant(d *device, class Class) *Lease {
	now := time.Now()
	d.mu.Lock()
	d.holder = &HolderInfo{Class: class, LeaseID: uuid.New().String(), AcquiredAt: now}
	leaseID := d.holder.LeaseID
	d.mu.Unlock()

	if s.metrics != nil {
		s.metrics.setHolder(d.id, class, true)
	}
	return &Lease{ID: leaseID, GPUID: d.id, Class: class, dev: d, acquiredAt: now}
}

// Release frees the lease. Safe to call more than once; only the first
// call has an effect.
func (s *Scheduler) Release(lease *Lease) {
	if lease == nil || !lease.released.CompareAndSwap(false, true) {
		return
	}
	d := lease.dev

	d.mu.Lock()
	d.holder = nil
	next := s.nextWaiterLocked(d)
	d.mu.Unlock()

	if s.metrics != nil {
		s.metrics.setHolder(d.id, lease.Class, false)
		s.metrics.recordHoldDuration(d.id, lease.Class, time.Since(lease.acquiredAt))
	}
	d.sem.Release(1)

	if next != nil {
		select {
		case next.turn <- struct{}{}:
		default:
		}
	}
}

// nextWaiterLocked picks the highest-priority, earliest-queued waiter
// (spec.md §4.8: "FIFO within priority"). Callers hold d.mu.
func (s *Scheduler) nextWaiterLocked(d *device) *waiter {
	if len(d.waiting) == 0 {
		return nil
	}
	best := d.waiting[0]
	for _, w := range d.waiting[1:] {
		if w.priority > best.priority || (w.priority == best.priority && w.seq < best.seq) {
			best = w
		}
	}
	return best
}

func (s *Scheduler) removeWaiter(d *device, target *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.waiting {
		if w == target {
			d.waiting = append(d.waiting[:i], d.waiting[i+1:]...)
			break
		}
	}
	s.reportQueueDepth(d)
}

func (s *Scheduler) reportQueueDepth(d *device) {
	if s.metrics == nil {
		return
	}
	counts := map[Class]int{}
	for _, w := range d.waiting {
		counts[w.class]++
	}
	s.metrics.setQueueDepth(d.id, counts)
}

// Status reports each configured device's current holder and per-class
// queue depth (spec.md §4.8: "status() → per-class queue depth + current
// holder").
func (s *Scheduler) Status() []DeviceStatus {
	s.mu.Lock()
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	out := make([]DeviceStatus, 0, len(ids))
	for _, id := range ids {
		d := s.device(id)
		d.mu.Lock()
		depth := map[Class]int{}
		for _, w := range d.waiting {
			depth[w.class]++
		}
		var holder *HolderInfo
		if d.holder != nil {
			h := *d.holder
			holder = &h
		}
		d.mu.Unlock()
		out = append(out, DeviceStatus{GPUID: id, Holder: holder, QueueDepth: depth})
	}
	return out
}
