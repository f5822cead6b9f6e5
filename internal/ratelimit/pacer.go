package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Waiter is anything that can hold a caller back before the next call.
type Waiter interface {
	Wait(ctx context.Context) error
}

// BatchPacer lets size calls through, then pauses before the first call of every following batch.
type BatchPacer struct {
	mu    sync.Mutex
	size  int
	pause time.Duration
	calls int
}

// NewBatchPacer returns a pacer. A non-positive size or pause disables pausing.
func NewBatchPacer(size int, pause time.Duration) *BatchPacer {
	return &BatchPacer{size: size, pause: pause}
}

func (p *BatchPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.size <= 0 || p.pause <= 0 {
		return nil
	}

	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	if call == 1 || (call-1)%p.size != 0 {
		return nil
	}

	return sleep(ctx, p.pause)
}

// Chain waits on every non-nil waiter in order.
type Chain []Waiter

func (c Chain) Wait(ctx context.Context) error {
	for _, w := range c {
		if w == nil {
			continue
		}
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
