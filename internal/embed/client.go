// Package embed wraps the external text-embedding capability with
// retries, a content-hash cache, and a deterministic fallback provider
// for credential-less deployments.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-finder/internal/observability"
)

// Dimension is the vector size every provider must produce. The store
// schema and cosine scoring both assume it.
const Dimension = 768

// ErrUnavailable reports that the embedding capability failed for a
// text after retries. Callers degrade to skill-and-experience scoring.
var ErrUnavailable = errors.New("embedding unavailable")

const (
	maxRetries   = 3
	retryBackoff = 500 * time.Millisecond
)

// Provider is the raw embedding capability: text in, fixed-length
// vector out.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// Client adds caching and bounded retries on top of a Provider.
type Client struct {
	provider Provider
	cache    *Cache
}

// NewClient builds a provider from cfg the way the rest of the service
// selects backends: GenAI when credentials exist, deterministic hash
// embeddings otherwise.
func NewClient(ctx context.Context, cfg Config, cache *Cache) (*Client, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("embedding provider selected", "model", provider.Model())
	return &Client{provider: provider, cache: cache}, nil
}

// NewClientWithProvider wires an explicit provider; tests use it.
func NewClientWithProvider(p Provider, cache *Cache) *Client {
	return &Client{provider: p, cache: cache}
}

// Config selects and parameterizes the embedding backend.
type Config struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

func newProvider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.APIKey == "" && cfg.Project == "" {
		slog.Warn("no embedding credentials set, using deterministic fallback embeddings")
		return NewFallbackProvider(), nil
	}
	return NewGenAIProvider(ctx, cfg)
}

// Embed returns the vector for one text, from cache when possible.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input text, preserving order. Texts
// already in the content-hash cache never reach the provider; the rest
// go out in one call with bounded retries. A persistent provider
// failure surfaces as ErrUnavailable.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(ctx, text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for i, idx := range missing {
		batch[i] = texts[idx]
	}

	vecs, err := c.embedWithRetry(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrUnavailable, len(vecs), len(batch))
	}

	for i, idx := range missing {
		out[idx] = vecs[i]
		c.cache.Put(ctx, texts[idx], vecs[i])
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		observability.IncEmbedCall()
		vecs, err := c.provider.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("embedding call failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// Model names the active embedding model for /stats.
func (c *Client) Model() string {
	return c.provider.Model()
}
