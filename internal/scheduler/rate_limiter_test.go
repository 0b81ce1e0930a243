package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a HostRateLimiter deterministically and records sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func newTestLimiter(delay time.Duration) (*HostRateLimiter, *fakeClock) {
	clock := newFakeClock()
	r := NewHostRateLimiter(delay)
	r.now = clock.Now
	r.sleep = clock.Sleep
	return r, clock
}

func TestWaitTurnSpacesSameHost(t *testing.T) {
	r, clock := newTestLimiter(500 * time.Millisecond)

	r.WaitTurn("a.com")
	require.Empty(t, clock.sleeps, "first call must not sleep")

	// Advance 10ms of wall time, then request again.
	clock.mu.Lock()
	clock.now = clock.now.Add(10 * time.Millisecond)
	clock.mu.Unlock()

	r.WaitTurn("a.com")
	require.Len(t, clock.sleeps, 1)
	got := clock.sleeps[0]
	assert.GreaterOrEqual(t, got, 490*time.Millisecond)
	assert.LessOrEqual(t, got, 500*time.Millisecond)
}

func TestWaitTurnDifferentHostsDoNotInterfere(t *testing.T) {
	r, clock := newTestLimiter(500 * time.Millisecond)

	r.WaitTurn("a.com")
	r.WaitTurn("b.com")
	assert.Empty(t, clock.sleeps)
}

func TestWaitTurnZeroDelayIsNoop(t *testing.T) {
	r, clock := newTestLimiter(0)
	for i := 0; i < 5; i++ {
		r.WaitTurn("a.com")
	}
	assert.Empty(t, clock.sleeps)
}

func TestWaitTurnBacklogAccumulates(t *testing.T) {
	r, clock := newTestLimiter(100 * time.Millisecond)

	// Three immediate calls: slots at t, t+100ms, t+200ms.
	r.WaitTurn("a.com")
	frozen := clock.Now()
	clock.mu.Lock()
	clock.now = frozen
	clock.mu.Unlock()

	r.WaitTurn("a.com")
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 100*time.Millisecond, clock.sleeps[0])
}

func TestWaitTurnRealPacing(t *testing.T) {
	r := NewHostRateLimiter(50 * time.Millisecond)

	r.WaitTurn("a.com")
	start := time.Now()
	r.WaitTurn("a.com")
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestGlobalLimiterDisabled(t *testing.T) {
	g := NewGlobalLimiter(0)
	assert.Nil(t, g)
	assert.NoError(t, g.Wait(context.Background()))
}

func TestGlobalLimiterAllowsWithinRate(t *testing.T) {
	g := NewGlobalLimiter(1000)
	require.NotNil(t, g)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		assert.NoError(t, g.Wait(ctx))
	}
}
