package anon

import (
	"math"
	"sync"
	"time"
)

// RateLimiterConfig tunes the sliding-window flood control.
type RateLimiterConfig struct {
	Window  time.Duration
	MaxHits int
	Block   time.Duration
}

// DefaultRateLimiterConfig allows 10 calls per 10s and blocks offenders for 5 minutes.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Window: 10 * time.Second, MaxHits: 10, Block: 300 * time.Second}
}

// RateLimiter is per-user sliding-window flood control. State is process-local
// and is lost on restart.
type RateLimiter struct {
	cfg RateLimiterConfig
	now Clock

	mu      sync.Mutex
	hits    map[int64][]time.Time
	blocked map[int64]time.Time
}

// NewRateLimiter creates a limiter. A nil clock uses time.Now.
func NewRateLimiter(cfg RateLimiterConfig, now Clock) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxHits <= 0 {
		cfg.MaxHits = def.MaxHits
	}
	if cfg.Block <= 0 {
		cfg.Block = def.Block
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     now,
		hits:    make(map[int64][]time.Time),
		blocked: make(map[int64]time.Time),
	}
}

// Check records a call for userID and fails with a KindRateLimited error when the
// user is blocked or has just exceeded the window quota.
func (l *RateLimiter) Check(userID int64) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.blocked[userID]; ok {
		if until.After(now) {
			return RateLimitExceeded(int(math.Ceil(until.Sub(now).Seconds())))
		}
		delete(l.blocked, userID)
	}

	bucket := l.hits[userID]
	drop := 0
	for drop < len(bucket) && now.Sub(bucket[drop]) > l.cfg.Window {
		drop++
	}
	bucket = append(bucket[drop:], now)

	if len(bucket) > l.cfg.MaxHits {
		delete(l.hits, userID)
		l.blocked[userID] = now.Add(l.cfg.Block)
		return RateLimitExceeded(int(l.cfg.Block.Seconds()))
	}
	l.hits[userID] = bucket
	return nil
}

// Reset forgets all history for userID.
func (l *RateLimiter) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, userID)
	delete(l.blocked, userID)
}
