package embed

import (
	"context"
	"errors"
	"math"
	"testing"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	p.calls++
	if p.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, Dimension)
		vec[0] = float64(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func (p *countingProvider) Model() string { return "counting" }

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(16, nil)
	if err != nil {
		t.Fatalf("failed to build cache: %v", err)
	}
	return cache
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	provider := &countingProvider{}
	client := NewClientWithProvider(provider, newTestCache(t))

	texts := []string{"a", "bb", "ccc"}
	vecs, err := client.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float64(len(texts[i])) {
			t.Fatalf("vector %d out of order: got marker %f", i, v[0])
		}
		if len(v) != Dimension {
			t.Fatalf("vector %d has dimension %d, want %d", i, len(v), Dimension)
		}
	}
}

func TestEmbedCacheHitSkipsProvider(t *testing.T) {
	provider := &countingProvider{}
	client := NewClientWithProvider(provider, newTestCache(t))
	ctx := context.Background()

	if _, err := client.Embed(ctx, "golang backend engineer"); err != nil {
		t.Fatalf("first embed failed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}

	// Same content, different surrounding whitespace: still a hit.
	if _, err := client.Embed(ctx, "  Golang   backend engineer "); err != nil {
		t.Fatalf("second embed failed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected cache hit, provider called %d times", provider.calls)
	}
}

func TestEmbedBatchMixedHits(t *testing.T) {
	provider := &countingProvider{}
	client := NewClientWithProvider(provider, newTestCache(t))
	ctx := context.Background()

	if _, err := client.Embed(ctx, "cached"); err != nil {
		t.Fatalf("prime failed: %v", err)
	}

	vecs, err := client.EmbedBatch(ctx, []string{"cached", "fresh"})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("expected both vectors present")
	}
	if provider.calls != 2 {
		t.Fatalf("expected one extra provider call for the miss, got %d total", provider.calls)
	}
}

func TestEmbedProviderFailureSurfacesErrUnavailable(t *testing.T) {
	provider := &countingProvider{fail: true}
	client := NewClientWithProvider(provider, newTestCache(t))

	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if provider.calls != maxRetries {
		t.Fatalf("expected %d attempts, got %d", maxRetries, provider.calls)
	}
}

func TestFallbackProviderDeterministic(t *testing.T) {
	p := NewFallbackProvider()
	ctx := context.Background()

	a, err := p.Embed(ctx, []string{"golang developer"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := p.Embed(ctx, []string{"golang developer"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(a[0]) != Dimension {
		t.Fatalf("expected %d dims, got %d", Dimension, len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("fallback embedding not deterministic at index %d", i)
		}
	}

	var norm float64
	for _, v := range a[0] {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Fatalf("expected unit vector, norm %f", math.Sqrt(norm))
	}

	c, err := p.Embed(ctx, []string{"data scientist"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	same := true
	for i := range a[0] {
		if a[0][i] != c[0][i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different texts produced identical fallback embeddings")
	}
}

func TestContentHashNormalizes(t *testing.T) {
	if ContentHash("Go  Developer") != ContentHash("go developer") {
		t.Fatalf("expected case and whitespace insensitive hashing")
	}
	if ContentHash("go developer") == ContentHash("rust developer") {
		t.Fatalf("different content must hash differently")
	}
}
