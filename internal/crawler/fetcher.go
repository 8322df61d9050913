package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/okhmil/pricetrack/internal/config"
)

const (
	maxResponseBytes = 10 * 1024 * 1024
	maxRedirects     = 10
	baseBackoff      = 500 * time.Millisecond
	maxBackoff       = 15 * time.Second
)

// Fetcher downloads pages with per-host pacing, robots.txt enforcement, and
// bounded retries for transient failures.
type Fetcher struct {
	client      *http.Client
	limiter     *RateLimiter
	robots      *Robots
	userAgent   string
	retryMax    int
	retryBudget time.Duration
}

// NewFetcher creates a fetcher for one source. robots may be nil when
// robots.txt enforcement is disabled.
func NewFetcher(cfg *config.SourceConfig, limiter *RateLimiter, robots *Robots) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return nil
		},
	}

	return &Fetcher{
		client:      client,
		limiter:     limiter,
		robots:      robots,
		userAgent:   cfg.UserAgent,
		retryMax:    cfg.RetryMax,
		retryBudget: cfg.RetryBudget,
	}
}

// Fetch downloads one page body. Transient failures (timeouts, connection
// errors, 5xx, 429) are retried with exponential backoff and jitter until
// the attempt count or the wall-clock retry budget runs out. Client errors
// and robots denials fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &FetchError{Kind: KindDisallowed, URL: rawURL}
		}
	}

	deadline := time.Now().Add(f.retryBudget)
	var lastErr error

	for attempt := 0; attempt <= f.retryMax; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt)
			if f.retryBudget > 0 && time.Now().Add(wait).After(deadline) {
				break
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		body, err := f.do(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *FetchError
		if !errors.As(err, &fe) || !fe.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

// do performs a single request attempt and classifies its failure.
func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}

	return body, nil
}

func classifyNetErr(err error) FetchErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

// backoffDelay is exponential in the attempt number with up to 50% added
// jitter, capped so a long retry chain does not stall the whole crawl.
func backoffDelay(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
