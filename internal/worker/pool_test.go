package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDeliversValue(t *testing.T) {
	pool := NewPool(2)
	h := pool.Submit(context.Background(), func(ctx context.Context, report func(int)) (any, error) {
		return 42, nil
	})

	res := h.Wait()
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
	pool.Wait()
}

func TestSubmitDeliversError(t *testing.T) {
	pool := NewPool(1)
	boom := errors.New("boom")
	h := pool.Submit(context.Background(), func(ctx context.Context, report func(int)) (any, error) {
		return nil, boom
	})

	res := h.Wait()
	assert.ErrorIs(t, res.Err, boom)
	pool.Wait()
}

func TestProgressReports(t *testing.T) {
	pool := NewPool(1)
	h := pool.Submit(context.Background(), func(ctx context.Context, report func(int)) (any, error) {
		report(30)
		report(100)
		return nil, nil
	})

	res := h.Wait()
	require.NoError(t, res.Err)

	var seen []int
	for p := range h.Progress() {
		seen = append(seen, p)
	}
	assert.Equal(t, []int{30, 100}, seen)
	pool.Wait()
}

func TestConcurrencyBound(t *testing.T) {
	const size = 2
	pool := NewPool(size)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := pool.Submit(context.Background(), func(ctx context.Context, report func(int)) (any, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
			require.NoError(t, h.Wait().Err)
		}()
	}
	wg.Wait()
	pool.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestCancelledBeforeAdmission(t *testing.T) {
	pool := NewPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := pool.Submit(context.Background(), func(ctx context.Context, report func(int)) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started // the only slot is now held

	ctx, cancel := context.WithCancel(context.Background())
	waiting := pool.Submit(ctx, func(ctx context.Context, report func(int)) (any, error) {
		return "never runs", nil
	})
	cancel()

	res := waiting.Wait()
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Nil(t, res.Value)

	close(release)
	require.NoError(t, blocker.Wait().Err)
	pool.Wait()
}
