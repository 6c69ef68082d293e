package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxResults = 5
	maxRetries        = 4
	maxBackoff        = 30 * time.Second
)

var ( //nolint:gochecknoglobals
	limitersMu sync.Mutex
	limiters   = map[string]*rate.Limiter{}
)

// limiterFor returns the limiter shared by every provider instance using
// key, creating it with one request per interval on first use.
func limiterFor(key string, interval time.Duration) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	l, ok := limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(interval), 1)
		limiters[key] = l
	}
	return l
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d < maxBackoff {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func capResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}
