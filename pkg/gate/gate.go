// Package gate provides admission control for backing-store operations.
//
// A Gate bounds the number of simultaneously running operations and serves
// excess callers strictly in arrival order. It exists because the backing
// store has a practical ceiling on concurrent queries; without it, burst
// traffic (for example composing context for many chat requests at once)
// can overload the store.
package gate

import (
	"context"
	"errors"
	"sync"
)

// DefaultMaxConcurrent is the admission limit used when New is called
// with a non-positive limit.
const DefaultMaxConcurrent = 10

// ErrClosed is returned by Run and Batch after Close has been called.
var ErrClosed = errors.New("gate is closed")

// Gate limits in-flight operations to a fixed maximum.
//
// Callers over the limit are queued and released in FIFO order as
// capacity frees up, so starvation is not possible. A Gate must be
// created with New and can be shared by any number of goroutines.
//
// Example:
//
//	g := gate.New(10)
//	defer g.Close()
//
//	err := g.Run(ctx, func(ctx context.Context) error {
//	    return store.Query(ctx, opts)
//	})
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	max    int
	active int
	queue  []*waiter
	closed bool
}

type waiter struct {
	ready chan struct{}
	err   error // written under the gate lock before ready is closed
}

// New creates a Gate admitting at most max concurrent operations.
// A non-positive max falls back to DefaultMaxConcurrent.
func New(max int) *Gate {
	if max <= 0 {
		max = DefaultMaxConcurrent
	}
	g := &Gate{max: max}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Run executes fn immediately if capacity allows, otherwise blocks until
// this caller reaches the head of the queue. The slot is released when fn
// returns, whether it succeeded or failed.
//
// Run returns ctx.Err() if the context is cancelled while queued, and
// ErrClosed if the gate is closed before the operation starts.
func (g *Gate) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return fn(ctx)
}

// Batch runs every operation through the gate concurrently and blocks
// until all of them complete. It returns the first error encountered;
// the remaining operations still run to completion.
func (g *Gate) Batch(ctx context.Context, fns []func(ctx context.Context) error) error {
	var wg sync.WaitGroup
	var once sync.Once
	var first error

	for _, fn := range fns {
		fn := fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Run(ctx, fn); err != nil {
				once.Do(func() { first = err })
			}
		}()
	}

	wg.Wait()
	return first
}

// InFlight returns the number of operations currently running.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Queued returns the number of callers waiting for admission.
func (g *Gate) Queued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Close rejects all queued and future callers with ErrClosed, then blocks
// until every in-flight operation has finished. It is idempotent.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		g.closed = true
		for _, w := range g.queue {
			w.err = ErrClosed
			close(w.ready)
		}
		g.queue = nil
	}

	for g.active > 0 {
		g.cond.Wait()
	}
	return nil
}

func (g *Gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.active < g.max {
		g.active++
		g.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	g.queue = append(g.queue, w)
	g.mu.Unlock()

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
		if g.abandon(w) {
			return ctx.Err()
		}
		// The slot was handed over concurrently with cancellation;
		// give it back so the next waiter is not stranded.
		select {
		case <-w.ready:
		default:
		}
		if w.err == nil {
			g.release()
		}
		return ctx.Err()
	}
}

// abandon removes w from the queue, returning false if w had already
// been granted a slot (or rejected by Close).
func (g *Gate) abandon(w *waiter) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, q := range g.queue {
		if q == w {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			return true
		}
	}
	return false
}

// release hands the slot to the queue head, or frees it when the queue
// is empty. Transfer keeps the active count unchanged, so release order
// equals enqueue order.
func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.queue) > 0 {
		w := g.queue[0]
		g.queue = g.queue[1:]
		close(w.ready)
		return
	}
	g.active--
	if g.active == 0 {
		g.cond.Broadcast()
	}
}
