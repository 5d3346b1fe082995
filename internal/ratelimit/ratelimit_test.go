package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
	l := New()
	l.Now = clock.Now
	return l, clock
}

func TestMayCall_BlocksAtLimit(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter()
	for i := 0; i < 3; i++ {
		ok, wait := l.MayCall("twelvedata", 3)
		require.Truef(t, ok, "call %d should be allowed", i+1)
		require.Zero(t, wait)
		l.RecordCall("twelvedata")
		clock.Advance(10 * time.Second)
	}

	// Act: the fourth call within the window is refused.
	ok, wait := l.MayCall("twelvedata", 3)
	require.False(t, ok)

	// Assert: wait runs until the first call (30s ago) leaves the window.
	require.Equal(t, 30*time.Second, wait)
}

func TestMayCall_AllowsAgainAfterOldestExpires(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter()
	l.RecordCall("polygon")
	clock.Advance(20 * time.Second)
	l.RecordCall("polygon")

	ok, _ := l.MayCall("polygon", 2)
	require.False(t, ok)

	// Act: let the oldest call age past 60 seconds with no other event.
	clock.Advance(41 * time.Second)

	ok, wait := l.MayCall("polygon", 2)
	require.True(t, ok)
	require.Zero(t, wait)
	require.Equal(t, 1, l.Count("polygon"))
}

func TestMayCall_ProvidersAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	l.RecordCall("yahoo")

	ok, _ := l.MayCall("yahoo", 1)
	require.False(t, ok)
	ok, _ = l.MayCall("twelvedata", 1)
	require.True(t, ok)
}

func TestMayCall_ZeroLimitIsUnlimited(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	for i := 0; i < 100; i++ {
		l.RecordCall("mock")
	}
	ok, _ := l.MayCall("mock", 0)
	require.True(t, ok)
}

func TestAcquire_SleepsUntilBudget(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter()
	l.RecordCall("twelvedata")

	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.Advance(d)
		return nil
	}

	require.NoError(t, l.Acquire(t.Context(), "twelvedata", 1, sleep))
	require.Equal(t, []time.Duration{time.Minute}, slept)
	require.Equal(t, 1, l.Count("twelvedata"))
}

func TestAcquire_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter()
	l.RecordCall("twelvedata")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := l.Acquire(ctx, "twelvedata", 1, Sleep)
	require.ErrorIs(t, err, context.Canceled)
}
