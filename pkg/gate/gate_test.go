package gate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/teachmem/pkg/gate"
)

func TestGate_RunWithinLimit(t *testing.T) {
	g := gate.New(2)

	err := g.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, g.InFlight())
}

func TestGate_PropagatesError(t *testing.T) {
	g := gate.New(2)

	want := errors.New("boom")
	err := g.Run(context.Background(), func(ctx context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}

func TestGate_LimitsConcurrency(t *testing.T) {
	const max = 3
	const workers = 20

	g := gate.New(max)

	var current, peak int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Run(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(max))
	assert.Equal(t, 0, g.InFlight())
	assert.Equal(t, 0, g.Queued())
}

func TestGate_FIFOOrder(t *testing.T) {
	g := gate.New(1)

	// Occupy the only slot so every subsequent caller queues.
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Run(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Wait until this caller is queued before starting the next, so
		// arrival order is deterministic.
		require.Eventually(t, func() bool {
			return g.Queued() == i+1
		}, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestGate_ContextCancelledWhileQueued(t *testing.T) {
	g := gate.New(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Run(ctx, func(ctx context.Context) error {
			t.Error("cancelled operation must not run")
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		return g.Queued() == 1
	}, time.Second, time.Millisecond)

	cancel()
	err := <-errChan
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, g.Close())
}

func TestGate_Batch(t *testing.T) {
	g := gate.New(2)

	var done int32
	fns := make([]func(ctx context.Context) error, 6)
	for i := range fns {
		fns[i] = func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}
	}

	err := g.Batch(context.Background(), fns)
	assert.NoError(t, err)
	assert.Equal(t, int32(6), atomic.LoadInt32(&done))
}

func TestGate_BatchReturnsFirstError(t *testing.T) {
	g := gate.New(2)

	want := errors.New("boom")
	fns := []func(ctx context.Context) error{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return want },
		func(ctx context.Context) error { return nil },
	}

	err := g.Batch(context.Background(), fns)
	assert.ErrorIs(t, err, want)
}

func TestGate_CloseRejectsNewWork(t *testing.T) {
	g := gate.New(1)
	require.NoError(t, g.Close())

	err := g.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, gate.ErrClosed)
}

func TestGate_CloseRejectsQueued(t *testing.T) {
	g := gate.New(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Run(context.Background(), func(ctx context.Context) error {
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		return g.Queued() == 1
	}, time.Second, time.Millisecond)

	// Close must not block on the queued caller, only on the active one.
	closed := make(chan struct{})
	go func() {
		_ = g.Close()
		close(closed)
	}()

	assert.ErrorIs(t, <-errChan, gate.ErrClosed)

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after in-flight work finished")
	}
}
