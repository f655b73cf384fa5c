package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Limits(t *testing.T) {
	_, err := NewPool(maxGlobalWorkers+1, nil)
	assert.Error(t, err)

	p, err := NewPool(0, nil)
	require.NoError(t, err)
	assert.Greater(t, p.MaxWorkers(), 0)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p, err := NewPool(3, nil)
	require.NoError(t, err)
	p.Start()

	var current, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(&Job{ID: "job", Run: func() {
			defer wg.Done()
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}}))
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))

	require.NoError(t, p.Shutdown(context.Background()))
	_, _, completed := p.Stats()
	assert.Equal(t, int64(20), completed)
}

func TestPool_RecoversPanic(t *testing.T) {
	p, err := NewPool(1, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(&Job{ID: "boom", Run: func() { panic("boom") }}))

	done := make(chan struct{})
	require.NoError(t, p.Submit(&Job{ID: "after", Run: func() { close(done) }}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panic 后工作池未继续执行作业")
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p, err := NewPool(1, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Submit(&Job{Run: func() {}}), ErrPoolClosed, "未启动的工作池不接受作业")

	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.Submit(&Job{Run: func() {}}), ErrPoolClosed)
	assert.Error(t, p.Submit(nil))
}

func TestPool_RejectsQueuedJobsOnShutdown(t *testing.T) {
	p, err := NewPool(1, nil)
	require.NoError(t, err)
	p.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(&Job{ID: "blocker", Run: func() {
		close(started)
		<-release
	}}))
	<-started

	rejected := make(chan error, 1)
	require.NoError(t, p.Submit(&Job{
		ID:       "queued",
		Run:      func() { t.Error("排队作业不应执行") },
		OnReject: func(err error) { rejected <- err },
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, p.Shutdown(context.Background()))

	select {
	case err := <-rejected:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("排队作业未收到拒绝通知")
	}
}

func TestPool_ShutdownTimeout(t *testing.T) {
	p, err := NewPool(1, nil)
	require.NoError(t, err)
	p.Start()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, p.Submit(&Job{Run: func() {
		close(started)
		<-release
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}
