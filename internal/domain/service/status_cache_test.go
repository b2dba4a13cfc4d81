package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dwelo-bridge/internal/domain/model"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCache_CollapsesConcurrentFetches(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (*model.Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return snapshotWith(switchDevice("1", "On")), nil
	}
	cache := NewStatusCache(fetch, time.Second, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	results := make([]*model.Snapshot, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := cache.Fresh(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, snap := range results {
		assert.Same(t, results[0], snap)
	}
}

func TestStatusCache_ServesWithinTTL(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) (*model.Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith(), nil
	}
	clock := clockwork.NewFakeClock()
	cache := NewStatusCache(fetch, 2*time.Second, clock)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(time.Second)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	cache.Invalidate()
	assert.Nil(t, cache.Latest())
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestStatusCache_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cache := NewStatusCache(func(ctx context.Context) (*model.Snapshot, error) {
		<-release
		return snapshotWith(), nil
	}, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.Fresh(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
