package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_RunsExactlyN(t *testing.T) {
	for _, n := range []int{0, 1, 7, 32} {
		var count atomic.Int32
		seen := make(map[int]bool)
		var mu sync.Mutex

		err := FanOut(context.Background(), n, func(_ context.Context, worker int) error {
			count.Add(1)
			mu.Lock()
			seen[worker] = true
			mu.Unlock()
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, int32(n), count.Load())
		assert.Len(t, seen, n, "worker numbers are distinct")
	}
}

func TestExecutor_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	exec := NewExecutor(context.Background())

	exec.Go("ok", func(context.Context) error { return nil })
	exec.Go("bad", func(context.Context) error { return boom })

	err := exec.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 2, exec.Started())
	assert.Error(t, exec.Context().Err(), "context is released after Wait")
}

func TestExecutor_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	err := FanOut(ctx, 3, func(context.Context, int) error {
		ran.Store(true)
		return nil
	})

	assert.NoError(t, err)
	assert.False(t, ran.Load())
}

func TestExecutor_CancelReachesWorkers(t *testing.T) {
	exec := NewExecutor(context.Background())
	started := make(chan struct{})

	exec.Go("blocked", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	exec.Cancel()
	assert.ErrorIs(t, exec.Wait(), context.Canceled)
}
