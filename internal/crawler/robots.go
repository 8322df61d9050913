package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Robots caches robots.txt verdicts per host. The file is fetched once per
// host; an unreachable or missing robots.txt permits everything.
type Robots struct {
	client    *http.Client
	limiter   *RateLimiter
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group // host -> matched group, nil = allow all
}

// NewRobots creates a robots.txt checker. When limiter is non-nil, hosts
// announcing a Crawl-delay get their request pacing adjusted to honor it.
func NewRobots(userAgent string, timeout time.Duration, limiter *RateLimiter) *Robots {
	return &Robots{
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether robots.txt permits fetching rawURL.
func (r *Robots) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	group, err := r.groupFor(ctx, u)
	if err != nil {
		return false, err
	}
	if group == nil {
		return true, nil
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return group.Test(path), nil
}

func (r *Robots) groupFor(ctx context.Context, u *url.URL) (*robotstxt.Group, error) {
	r.mu.Lock()
	if group, ok := r.groups[u.Host]; ok {
		r.mu.Unlock()
		return group, nil
	}
	r.mu.Unlock()

	// The download happens outside the lock so one slow host cannot stall
	// robots checks for every other host. Concurrent misses for the same
	// host may fetch twice; the first stored verdict wins.
	group := r.fetchGroup(ctx, u)

	r.mu.Lock()
	if cached, ok := r.groups[u.Host]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.groups[u.Host] = group
	r.mu.Unlock()

	if group != nil && group.CrawlDelay > 0 && r.limiter != nil {
		r.limiter.SetHostDelay(u.Host, group.CrawlDelay)
	}

	return group, nil
}

// fetchGroup downloads and parses robots.txt for one host. Any failure is
// treated as an absent file.
func (r *Robots) fetchGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}

	return data.FindGroup(r.userAgent)
}
