package pipeline

import (
	"context"
	"sync"
	"time"
)

// Ticker calls a function on a fixed interval until stopped. Calls never overlap.
type Ticker struct {
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

// Start stops any previous loop, then calls fn every interval.
func (t *Ticker) Start(fn func(ctx context.Context)) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				fn(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight call to return.
// It must not be called from inside fn; use Halt there.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Halt cancels the loop without waiting. Safe to call from inside fn.
func (t *Ticker) Halt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Running reports whether a loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
