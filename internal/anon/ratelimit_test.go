package anon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBlocksEleventhCall(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(DefaultRateLimiterConfig(), clock.Now)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Check(alice), "call %d", i+1)
		clock.Advance(100 * time.Millisecond)
	}

	err := l.Check(alice)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindRateLimited, e.Kind)
	assert.Equal(t, 300, e.RetryAfter)
	assert.Contains(t, e.Message, "300")
}

func TestRateLimiterReportsRemainingBlock(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(RateLimiterConfig{Window: time.Second, MaxHits: 1, Block: 10 * time.Second}, clock.Now)

	require.NoError(t, l.Check(alice))
	require.Error(t, l.Check(alice))

	clock.Advance(3500 * time.Millisecond)
	var e *Error
	require.ErrorAs(t, l.Check(alice), &e)
	assert.Equal(t, 7, e.RetryAfter)

	clock.Advance(7 * time.Second)
	assert.NoError(t, l.Check(alice))
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(RateLimiterConfig{Window: 10 * time.Second, MaxHits: 2, Block: time.Minute}, clock.Now)

	require.NoError(t, l.Check(alice))
	clock.Advance(6 * time.Second)
	require.NoError(t, l.Check(alice))
	clock.Advance(5 * time.Second)
	// The first hit is now outside the window.
	require.NoError(t, l.Check(alice))
}

func TestRateLimiterIsPerUser(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(RateLimiterConfig{Window: time.Second, MaxHits: 1, Block: time.Minute}, clock.Now)

	require.NoError(t, l.Check(alice))
	require.Error(t, l.Check(alice))
	assert.NoError(t, l.Check(bob))

	l.Reset(alice)
	assert.NoError(t, l.Check(alice))
}
