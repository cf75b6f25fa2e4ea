// Package ratelimit provides local token-bucket limiting for outbound
// provider calls. Each agent process limits itself; there is no
// cross-process coordination.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrUnknownResource = errors.New("unknown resource")
)

// bucket is a token bucket refilled continuously over its window.
type bucket struct {
	capacity   int
	available  int
	window     time.Duration
	lastRefill time.Time
	inFlight   int
}

// refill adds the tokens accrued since the last refill.
func (b *bucket) refill(now time.Time) {
	if b.window <= 0 || b.capacity <= 0 {
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	tokens := int(float64(b.capacity) * float64(elapsed) / float64(b.window))
	if tokens > 0 {
		b.available += tokens
		if b.available > b.capacity {
			b.available = b.capacity
		}
		b.lastRefill = now
	}
}

// nextToken reports how long until one token accrues.
func (b *bucket) nextToken(now time.Time) time.Duration {
	perToken := b.window / time.Duration(b.capacity)
	wait := perToken - now.Sub(b.lastRefill)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Capacity describes the current state of one resource bucket.
type Capacity struct {
	Resource  string
	Available int
	Total     int
	Window    time.Duration
	InFlight  int
}

// Limiter rate-limits named resources with token buckets. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
	nowFunc func() time.Time
}

// New creates an empty Limiter; resources are registered with SetCapacity.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		nowFunc: time.Now,
	}
}

// SetCapacity configures a resource to capacity tokens per window.
// A non-positive capacity or window unregisters the resource.
func (l *Limiter) SetCapacity(resource string, capacity int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if capacity <= 0 || window <= 0 {
		delete(l.buckets, resource)
		return
	}

	if b, ok := l.buckets[resource]; ok {
		b.capacity = capacity
		b.window = window
		if b.available > capacity {
			b.available = capacity
		}
		return
	}
	l.buckets[resource] = &bucket{
		capacity:   capacity,
		available:  capacity, // start full
		window:     window,
		lastRefill: l.nowFunc(),
	}
}

// TryAcquire takes a token without blocking.
func (l *Limiter) TryAcquire(resource string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	b, ok := l.buckets[resource]
	if !ok {
		return false
	}
	b.refill(l.nowFunc())
	if b.available > 0 {
		b.available--
		b.inFlight++
		return true
	}
	return false
}

// Acquire blocks until a token is available, the context ends, or the
// limiter closes.
func (l *Limiter) Acquire(ctx context.Context, resource string) error {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return ErrClosed
		}
		b, ok := l.buckets[resource]
		if !ok {
			l.mu.Unlock()
			return ErrUnknownResource
		}
		b.refill(l.nowFunc())
		if b.available > 0 {
			b.available--
			b.inFlight++
			l.mu.Unlock()
			return nil
		}
		wait := b.nextToken(l.nowFunc())
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Release marks one in-flight request finished. Spent tokens are not
// refunded; they come back only through the window refill, so the
// request rate stays bounded even when calls complete quickly.
func (l *Limiter) Release(resource string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	b, ok := l.buckets[resource]
	if !ok {
		return
	}
	if b.inFlight > 0 {
		b.inFlight--
	}
}

// Capacity returns the current state of a resource, or nil if unknown.
func (l *Limiter) Capacity(resource string) *Capacity {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[resource]
	if !ok {
		return nil
	}
	b.refill(l.nowFunc())
	return &Capacity{
		Resource:  resource,
		Available: b.available,
		Total:     b.capacity,
		Window:    b.window,
		InFlight:  b.inFlight,
	}
}

// Close shuts the limiter down; blocked Acquire calls return ErrClosed
// on their next poll.
func (l *Limiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return nil
}
