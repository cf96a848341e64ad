// Package aggregate fans out to all source connectors under one shared
// deadline and merges their results into a deduplicated posting set.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/job-finder/internal/observability"
	"github.com/baxromumarov/job-finder/internal/source"
)

// Result is one aggregation round: the merged postings plus per-source
// bookkeeping for debug metadata and stats.
type Result struct {
	Postings  []source.Posting
	Queried   []string
	Responded []string
	Failed    map[string]string
}

// Aggregator runs concurrent fetches with bounded parallelism.
type Aggregator struct {
	sources     []source.Connector
	parallelism int
}

func New(sources []source.Connector, parallelism int) *Aggregator {
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Aggregator{sources: sources, parallelism: parallelism}
}

// Aggregate issues one fetch per connector under ctx's deadline and
// merges whatever completes. Source failures are recorded, never
// returned: a source that errors or times out simply contributes
// nothing this round.
func (a *Aggregator) Aggregate(ctx context.Context, q source.Query) Result {
	res := Result{Failed: map[string]string{}}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)

	for _, conn := range a.sources {
		res.Queried = append(res.Queried, conn.Name())
		g.Go(func() error {
			postings, err := conn.Fetch(ctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, source.ErrUnavailable) {
					slog.Warn("source unavailable this round", "source", conn.Name())
				} else {
					slog.Warn("source fetch failed", "source", conn.Name(), "error", err)
				}
				observability.IncError(observability.ClassifyFetchError(err))
				res.Failed[conn.Name()] = err.Error()
				return nil
			}
			observability.IncPostingsFetched(conn.Name(), len(postings))
			res.Responded = append(res.Responded, conn.Name())
			res.Postings = append(res.Postings, postings...)
			return nil
		})
	}

	// Fetch errors are absorbed above; Wait only observes ctx expiry.
	_ = g.Wait()

	res.Postings = Dedupe(res.Postings)
	return res
}

// DedupKey computes the identity used to collapse duplicates: the
// source-native id when present, otherwise normalized
// title|company|location so the same role posted through two boards
// folds into one record.
func DedupKey(p source.Posting) string {
	if id := p.SourceID(); id != "" {
		return id
	}
	return strings.Join([]string{
		normalize(p.Title),
		normalize(p.Company),
		normalize(p.Location),
	}, "|")
}

// CrossSourceKey ignores the source-native id so duplicates of the same
// role across different boards collapse too.
func CrossSourceKey(p source.Posting) string {
	return strings.Join([]string{
		normalize(p.Title),
		normalize(p.Company),
		normalize(p.Location),
	}, "|")
}

// Dedupe collapses postings that share a dedup key, keeping the one
// with the latest posted date. Within one source the native id wins;
// across sources equal title/company/location folds together.
func Dedupe(postings []source.Posting) []source.Posting {
	bySourceID := make(map[string]int)
	byContent := make(map[string]int)
	out := make([]source.Posting, 0, len(postings))

	keep := func(idx int, p source.Posting) bool {
		// Keep the newer posted_at; zero dates lose to real ones.
		return p.PostedAt.After(out[idx].PostedAt)
	}

	for _, p := range postings {
		contentKey := CrossSourceKey(p)

		if id := p.SourceID(); id != "" {
			if idx, ok := bySourceID[id]; ok {
				if keep(idx, p) {
					out[idx] = p
				}
				continue
			}
		}
		if idx, ok := byContent[contentKey]; ok {
			if keep(idx, p) {
				out[idx] = p
			}
			continue
		}

		out = append(out, p)
		idx := len(out) - 1
		if id := p.SourceID(); id != "" {
			bySourceID[id] = idx
		}
		byContent[contentKey] = idx
	}

	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
