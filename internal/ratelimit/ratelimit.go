// Package ratelimit implements a weighted two-bucket sliding window over the
// remote KV so limits hold across replicas.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rawblock/pixel-archives/internal/cache"
)

type Config struct {
	MaxRequestsPerWindow uint32
	WindowDurationSecs   uint64
	KeyPrefix            string
}

type Limiter struct {
	remote cache.RemoteStore
	cfg    Config
	// now is swappable for tests.
	now func() time.Time
}

func New(remote cache.RemoteStore, cfg Config) *Limiter {
	return &Limiter{remote: remote, cfg: cfg, now: time.Now}
}

// NewWithWindow builds a limiter with the standard 60 s window and a
// "rate:{prefix}" key namespace.
func NewWithWindow(remote cache.RemoteStore, limit uint32, prefix string) *Limiter {
	return New(remote, Config{
		MaxRequestsPerWindow: limit,
		WindowDurationSecs:   60,
		KeyPrefix:            "rate:" + prefix,
	})
}

// Check consumes one slot for key. Returns (allowed, remaining, resetAt).
// The previous window's count is weighted by how much of it still overlaps
// the sliding window, so a burst at a window edge cannot double the budget.
func (l *Limiter) Check(ctx context.Context, key string) (bool, uint32, uint64, error) {
	windowSecs := l.cfg.WindowDurationSecs
	now := uint64(l.now().Unix())

	currentWindow := now / windowSecs
	previousWindow := currentWindow - 1

	currentKey := fmt.Sprintf("%s:%s:%d", l.cfg.KeyPrefix, key, currentWindow)
	previousKey := fmt.Sprintf("%s:%s:%d", l.cfg.KeyPrefix, key, previousWindow)

	var currentCount, previousCount uint32
	if _, err := l.remote.GetJSON(ctx, currentKey, &currentCount); err != nil {
		return false, 0, 0, err
	}
	if _, err := l.remote.GetJSON(ctx, previousKey, &previousCount); err != nil {
		return false, 0, 0, err
	}

	secondsIntoCurrent := now % windowSecs
	previousWeight := 1.0 - float64(secondsIntoCurrent)/float64(windowSecs)

	weighted := uint32(math.Ceil(float64(previousCount)*previousWeight + float64(currentCount)))

	resetAt := (currentWindow + 1) * windowSecs

	if weighted >= l.cfg.MaxRequestsPerWindow {
		return false, 0, resetAt, nil
	}

	// Counter lives for two windows so it is still readable as the
	// "previous" bucket after rollover.
	ttl := time.Duration(windowSecs*2) * time.Second
	if err := l.remote.SetJSON(ctx, currentKey, currentCount+1, ttl); err != nil {
		return false, 0, 0, err
	}

	remaining := l.cfg.MaxRequestsPerWindow - (weighted + 1)
	return true, remaining, resetAt, nil
}

// Limiters bundles the four method-category limiters.
type Limiters struct {
	Auth   *Limiter
	Pixel  *Limiter
	Canvas *Limiter
	Solana *Limiter
}
