// Package validate confirms apply links are currently reachable. One
// dead link must never stall a batch: every check runs with a short
// per-URL timeout inside a bounded concurrent pool.
package validate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/job-finder/internal/source"
)

const maxRedirects = 5

// Validator issues lightweight reachability probes.
type Validator struct {
	client  *http.Client
	timeout time.Duration
	pool    int
}

func New(timeout time.Duration, pool int) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if pool <= 0 {
		pool = 10
	}
	return &Validator{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		timeout: timeout,
		pool:    pool,
	}
}

// Validate reports whether url answers a HEAD (or, when HEAD is
// rejected, a ranged GET) with a 2xx/3xx status.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	status, err := v.probe(ctx, http.MethodHead, url)
	if err == nil && statusOK(status) {
		return true
	}

	// Some employer sites reject HEAD outright; retry with a one-byte GET.
	if err != nil || status == http.StatusMethodNotAllowed ||
		status == http.StatusNotImplemented || status == http.StatusForbidden {
		status, err = v.probe(ctx, http.MethodGet, url)
		if err == nil && statusOK(status) {
			return true
		}
	}
	return false
}

func (v *Validator) probe(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "job-finder-bot/1.0")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func statusOK(status int) bool {
	return status >= 200 && status < 400
}

// FilterReachable checks each posting's apply URL concurrently and
// returns the survivors in their original order.
func (v *Validator) FilterReachable(ctx context.Context, postings []source.Posting) []source.Posting {
	if len(postings) == 0 {
		return nil
	}

	ok := make([]bool, len(postings))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.pool)

	for i, p := range postings {
		g.Go(func() error {
			ok[i] = v.Validate(ctx, p.ApplyURL)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]source.Posting, 0, len(postings))
	now := time.Now().UTC()
	for i, p := range postings {
		if !ok[i] {
			slog.Debug("dropping posting with unreachable apply url", "url", p.ApplyURL)
			continue
		}
		p.LastVerified = now
		out = append(out, p)
	}
	return out
}
