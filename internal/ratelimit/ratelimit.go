package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the rolling period a per-minute limit applies to.
const Window = time.Minute

// Limiter tracks recent call timestamps per upstream provider and decides
// whether another call fits inside a rolling one-minute window.
// State is local to the process; separate instances get separate budgets.
type Limiter struct {
	// Now is the clock; tests replace it.
	Now func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

// New creates a Limiter using the wall clock.
func New() *Limiter {
	return &Limiter{Now: time.Now, calls: make(map[string][]time.Time)}
}

// MayCall reports whether provider may be called now under limitPerMinute.
// When not allowed, wait is the time until the oldest in-window call expires.
// A limit <= 0 means unlimited.
func (l *Limiter) MayCall(provider string, limitPerMinute int) (allowed bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mayCallLocked(provider, limitPerMinute, l.now())
}

// RecordCall appends the current time to provider's call record.
func (l *Limiter) RecordCall(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(provider, l.now())
}

// Acquire blocks until provider has budget, then records the call.
// It returns early with ctx.Err() when the context ends while waiting.
func (l *Limiter) Acquire(ctx context.Context, provider string, limitPerMinute int, sleep func(context.Context, time.Duration) error) error {
	for {
		l.mu.Lock()
		now := l.now()
		ok, wait := l.mayCallLocked(provider, limitPerMinute, now)
		if ok {
			l.recordLocked(provider, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Count returns how many calls to provider fall inside the current window.
func (l *Limiter) Count(provider string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(provider, now)
	return len(l.calls[provider])
}

func (l *Limiter) mayCallLocked(provider string, limit int, now time.Time) (bool, time.Duration) {
	l.pruneLocked(provider, now)
	if limit <= 0 {
		return true, 0
	}
	ts := l.calls[provider]
	if len(ts) < limit {
		return true, 0
	}
	wait := ts[0].Add(Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

func (l *Limiter) recordLocked(provider string, now time.Time) {
	if l.calls == nil {
		l.calls = make(map[string][]time.Time)
	}
	l.calls[provider] = append(l.calls[provider], now)
}

// pruneLocked drops timestamps that are 60s or older.
func (l *Limiter) pruneLocked(provider string, now time.Time) {
	ts := l.calls[provider]
	cutoff := now.Add(-Window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	if i == len(ts) {
		delete(l.calls, provider)
		return
	}
	l.calls[provider] = append(ts[:0:0], ts[i:]...)
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
