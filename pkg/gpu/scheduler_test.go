package gpu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

func TestScheduler_MutualExclusion(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	lease, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-0", 0)
	require.NoError(t, err)
	require.NotNil(t, lease)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(shortCtx, ClassOCRVL, "gpu-0", 0)
	require.Error(t, err)
	assert.Equal(t, apperr.KindResourceBusy, apperr.KindOf(err))

	s.Release(lease)

	lease2, err := s.Acquire(ctx, ClassOCRVL, "gpu-0", 0)
	require.NoError(t, err)
	assert.Equal(t, ClassOCRVL, lease2.Class)
	s.Release(lease2)
}

func TestScheduler_DifferentGPUsDoNotContend(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	lease0, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-0", 0)
	require.NoError(t, err)
	defer s.Release(lease0)

	lease1, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-1", 0)
	require.NoError(t, err)
	defer s.Release(lease1)
}

func TestScheduler_HigherPriorityServedFirst(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	held, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-0", 0)
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(priority int) {
		defer wg.Done()
		lease, err := s.Acquire(ctx, ClassOCRVL, "gpu-0", priority)
		require.NoError(t, err)
		mu.Lock()
		order = append(order, priority)
		mu.Unlock()
		s.Release(lease)
	}

	wg.Add(2)
	go record(1)
	time.Sleep(10 * time.Millisecond) // ensure the low-priority waiter enqueues first
	go record(10)
	time.Sleep(20 * time.Millisecond) // let both enqueue before releasing the held lease
	s.Release(held)
	wg.Wait()

	require.Len(t, order, 2)
	assert.Equal(t, 10, order[0])
}

func TestScheduler_Status(t *testing.T) {
	s := New(Config{Devices: []DeviceConfig{{ID: "gpu-0", Classes: []Class{ClassLLMPrimary, ClassOCRVL}}}}, nil)
	ctx := context.Background()

	lease, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-0", 0)
	require.NoError(t, err)

	statuses := s.Status()
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].Holder)
	assert.Equal(t, ClassLLMPrimary, statuses[0].Holder.Class)

	s.Release(lease)
	statuses = s.Status()
	assert.Nil(t, statuses[0].Holder)
}

func TestScheduler_RunExclusiveReleasesOnError(t *testing.T) {
	s := New(Config{}, nil)
	ctx := context.Background()

	err := s.RunExclusive(ctx, ClassLLMPrimary, "gpu-0", 0, func(l *Lease) error {
		assert.NotEmpty(t, l.ID)
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)

	// The lease must have been released even though fn returned an error.
	lease, err := s.Acquire(ctx, ClassLLMPrimary, "gpu-0", 0)
	require.NoError(t, err)
	s.Release(lease)
}

func TestQualityGate_NeedsEscalation(t *testing.T) {
	gate := QualityGateConfig{}

	assert.True(t, gate.NeedsEscalation(PageResult{Blocks: 0, Confidence: 0.9, Text: "hello"}))
	assert.True(t, gate.NeedsEscalation(PageResult{Blocks: 3, Confidence: 0.2, Text: "hello world"}))
	assert.False(t, gate.NeedsEscalation(PageResult{Blocks: 3, Confidence: 0.95, Text: "hello world, this is clean ascii text"}))

	garbled := PageResult{Blocks: 3, Confidence: 0.9, Text: "���� garbled ��"}
	assert.True(t, gate.NeedsEscalation(garbled))
}
