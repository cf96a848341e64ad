// Package httpx provides the shared HTTP client used by source
// connectors and the URL validator: per-host rate limits and bounded
// retries with backoff on transient failures.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxAttempts = 3

// FetchError carries the HTTP status of a failed fetch so callers can
// classify it (rate limit vs auth vs server error).
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether err is a rate-limit or auth rejection,
// the conditions that mark a source unavailable for the round.
func IsThrottled(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == http.StatusTooManyRequests ||
		fe.Status == http.StatusUnauthorized ||
		fe.Status == http.StatusForbidden
}

// Client wraps http.Client with per-host rate limiting and polite
// retries. Safe for concurrent use.
type Client struct {
	client   *http.Client
	ua       string
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(userAgent string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = "job-finder-bot/1.0"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		ua:       userAgent,
		limiters: map[string]*rate.Limiter{},
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	c.limiters[host] = l
	return l
}

// Do executes the request, waiting on the host's rate limiter and
// retrying 429/5xx and network errors with exponential backoff. A 4xx
// other than 429 is returned immediately as a FetchError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.ua)
	}

	ctx := req.Context()
	limiter := c.limiterFor(req.URL.Hostname())

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		switch {
		case resp.StatusCode < 400:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &FetchError{Status: resp.StatusCode}
			resp.Body.Close()
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			resp.Body.Close()
			return nil, &FetchError{Status: resp.StatusCode}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("httpx: failed without error")
	}
	return nil, lastErr
}

// Get issues a rate-limited GET with context.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(req)
}
