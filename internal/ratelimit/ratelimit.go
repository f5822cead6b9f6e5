package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const unknownKey = "unknown"

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key and forgets clients idle for longer than ttl.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter constructs a limiter allowing burst requests and refilling refillPerSecond tokens.
// Call Close to stop the pruning goroutine.
func NewRateLimiter(burst int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(refillPerSecond),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if ttl > 0 {
		go rl.pruneLoop()
	} else {
		close(rl.done)
	}

	return rl
}

// Allow consumes a token for key if one is available.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	return rl.client(key, now).AllowN(now, 1)
}

// Wait blocks until key has a token or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.client(key, rl.now()).Wait(ctx)
}

// For returns a limiter bound to a single key.
func (rl *RateLimiter) For(key string) KeyedLimiter {
	return KeyedLimiter{limiter: rl, key: key}
}

// Close stops background pruning. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stop)
	})
	<-rl.done
}

func (rl *RateLimiter) client(key string, now time.Time) *rate.Limiter {
	if key == "" {
		key = unknownKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter
}

func (rl *RateLimiter) pruneLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.pruneStale()
		}
	}
}

func (rl *RateLimiter) pruneStale() {
	if rl.ttl <= 0 {
		return
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// KeyedLimiter paces calls for one key of a RateLimiter.
type KeyedLimiter struct {
	limiter *RateLimiter
	key     string
}

func (k KeyedLimiter) Wait(ctx context.Context) error {
	return k.limiter.Wait(ctx, k.key)
}
