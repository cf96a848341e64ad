package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/baxromumarov/job-finder/internal/aggregate"
	"github.com/baxromumarov/job-finder/internal/config"
	"github.com/baxromumarov/job-finder/internal/embed"
	"github.com/baxromumarov/job-finder/internal/observability"
	"github.com/baxromumarov/job-finder/internal/source"
	"github.com/baxromumarov/job-finder/internal/store"
	"github.com/baxromumarov/job-finder/internal/validate"
)

// ErrRefreshRunning reports a refresh invocation that was skipped
// because a previous run is still active. Not a failure.
var ErrRefreshRunning = errors.New("refresh already running")

// refreshFetchTimeout bounds a full refresh fetch. Generous compared
// to the live path: nothing is waiting on the response.
const refreshFetchTimeout = 5 * time.Minute

// Refresher repopulates the posting cache across all sources on a
// schedule and on demand. Only one run executes at a time.
type Refresher struct {
	cfg        *config.Config
	store      *store.Store
	aggregator *aggregate.Aggregator
	embedder   *embed.Client
	validator  *validate.Validator

	running atomic.Bool
	cron    *cron.Cron
}

func NewRefresher(cfg *config.Config, st *store.Store, agg *aggregate.Aggregator, emb *embed.Client, val *validate.Validator) *Refresher {
	return &Refresher{
		cfg:        cfg,
		store:      st,
		aggregator: agg,
		embedder:   emb,
		validator:  val,
	}
}

// Start schedules periodic refreshes and kicks off an initial run so
// the cache is warm shortly after boot.
func (r *Refresher) Start(ctx context.Context) error {
	r.cron = cron.New()
	spec := fmt.Sprintf("@every %dh", r.cfg.RefreshIntervalHours)
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
			slog.Error("scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	r.cron.Start()

	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
			slog.Error("initial refresh failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		r.cron.Stop()
	}()
	return nil
}

// Run executes one full refresh cycle: fetch everything, embed,
// validate, then swap the cache contents in a single transaction.
// Returns ErrRefreshRunning when a prior run still holds the guard.
func (r *Refresher) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRefreshRunning
	}
	defer r.running.Store(false)

	return r.run(ctx)
}

// TriggerAsync acquires the single-flight guard synchronously and runs
// the cycle in the background, so HTTP callers learn immediately
// whether their invocation started or was skipped.
func (r *Refresher) TriggerAsync(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRefreshRunning
	}

	go func() {
		defer r.running.Store(false)
		if err := r.run(ctx); err != nil {
			slog.Error("triggered refresh failed", "error", err)
		}
	}()
	return nil
}

func (r *Refresher) run(ctx context.Context) error {
	started := time.Now()
	slog.Info("cache refresh started")

	fetchCtx, cancel := context.WithTimeout(ctx, refreshFetchTimeout)
	defer cancel()

	res := r.aggregator.Aggregate(fetchCtx, source.Query{Limit: 0})
	if len(res.Failed) > 0 {
		for name, reason := range res.Failed {
			slog.Warn("source failed during refresh", "source", name, "reason", reason)
		}
	}
	if len(res.Responded) == 0 {
		return fmt.Errorf("refresh aborted: all %d sources failed", len(res.Queried))
	}

	postings := r.embedAll(ctx, res.Postings)
	postings, staleURLs := r.markVerified(ctx, postings)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh cancelled before commit: %w", err)
	}

	// The transaction runs on a detached context so a shutdown during
	// commit cannot leave the cache half-swapped.
	txCtx, txCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer txCancel()

	result, err := r.store.RunRefresh(txCtx, postings, aggregate.DedupKey, r.cfg.CacheTTL, staleURLs)
	if err != nil {
		observability.IncError(observability.ErrorStore)
		if result.ID != 0 {
			if markErr := r.store.MarkRefreshFailed(txCtx, result.ID, err); markErr != nil {
				slog.Error("failed to record refresh failure", "error", markErr)
			}
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	observability.SetLastRefresh(time.Now())
	slog.Info("cache refresh finished",
		"fetched", result.Fetched,
		"upserted", result.Upserted,
		"pruned", result.Pruned,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

func (r *Refresher) embedAll(ctx context.Context, postings []source.Posting) []source.Posting {
	batch := r.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 16
	}

	for start := 0; start < len(postings); start += batch {
		if ctx.Err() != nil {
			break
		}
		end := min(start+batch, len(postings))

		texts := make([]string, 0, end-start)
		for _, p := range postings[start:end] {
			texts = append(texts, embedText(p))
		}

		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			observability.IncError(observability.ErrorEmbed)
			slog.Warn("embedding failed during refresh, batch left unembedded", "error", err)
			continue
		}
		for i := range vectors {
			postings[start+i].Embedding = vectors[i]
		}
		observability.IncPostingsEmbedded(end - start)
	}
	return postings
}

// markVerified validates every apply URL. A failing URL marks the
// posting stale rather than dropping it: the row stays until TTL
// pruning in case the employer site recovers. Failed URLs come back
// separately because the upsert treats a zero LastVerified as
// "validation did not run" and would keep the old timestamp.
func (r *Refresher) markVerified(ctx context.Context, postings []source.Posting) ([]source.Posting, []string) {
	survivors := r.validator.FilterReachable(ctx, postings)
	verified := make(map[string]time.Time, len(survivors))
	for _, p := range survivors {
		verified[p.ApplyURL] = p.LastVerified
	}

	var stale []string
	for i := range postings {
		t, ok := verified[postings[i].ApplyURL]
		observability.IncURLValidated(ok)
		if ok {
			postings[i].LastVerified = t
		} else {
			postings[i].LastVerified = time.Time{}
			stale = append(stale, postings[i].ApplyURL)
		}
	}
	return postings, stale
}
