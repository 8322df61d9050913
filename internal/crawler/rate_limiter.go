package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing requests per host. Every host starts at the
// configured default interval; robots.txt Crawl-delay can stretch it later
// through SetHostDelay.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewRateLimiter creates a limiter issuing at most one request per interval
// per host.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until a request to rawURL's host is permitted or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return r.hostLimiter(u.Host).Wait(ctx)
}

// SetHostDelay overrides the pacing interval for one host. The override is
// only applied when it is stricter than the current default.
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	if delay <= r.interval {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

func (r *RateLimiter) hostLimiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[host]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Every(r.interval), 1)
	r.limiters[host] = limiter
	return limiter
}
