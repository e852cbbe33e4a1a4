// Package ratelimit paces requests against the results site. The source is a
// small volunteer-run server; the importer stays well under its capacity.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ttstats/rrimport/internal/metrics"
)

// Config holds pacing parameters. A zero or negative RequestsPerSecond
// disables pacing entirely.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter is a token bucket shared by all fetch workers.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a Limiter from the config.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available, respecting the context. Waits over
// a millisecond are recorded so operators can see when pacing throttles a
// sync run.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return nil
}
