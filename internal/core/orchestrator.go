// Package core ties fetching, embedding, storage, scoring, and
// validation into the request flows the HTTP layer exposes.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baxromumarov/job-finder/internal/aggregate"
	"github.com/baxromumarov/job-finder/internal/config"
	"github.com/baxromumarov/job-finder/internal/embed"
	"github.com/baxromumarov/job-finder/internal/match"
	"github.com/baxromumarov/job-finder/internal/observability"
	"github.com/baxromumarov/job-finder/internal/source"
	"github.com/baxromumarov/job-finder/internal/store"
	"github.com/baxromumarov/job-finder/internal/validate"
)

// ErrNoResults means the search could not run at all: every source was
// down and the cache held nothing usable. Distinct from a search that
// ran fine and matched nothing.
var ErrNoResults = errors.New("no results available")

// Request is one match query against live or cached postings.
type Request struct {
	ResumeText string
	ResumeID   string
	Location   string
	RemoteOnly bool
	JobType    string
	MinSalary  int
	Limit      int
	Debug      bool
}

func (req Request) candidateFilter(maxAge time.Duration) store.CandidateFilter {
	return store.CandidateFilter{
		Location:   req.Location,
		RemoteOnly: req.RemoteOnly,
		JobType:    req.JobType,
		MinSalary:  req.MinSalary,
		MaxAge:     maxAge,
		Limit:      1000,
	}
}

// MatchResult is one scored posting in a response. Never persisted.
type MatchResult struct {
	source.Posting
	MatchScore     float64  `json:"match_score"`
	MatchingSkills []string `json:"matching_skills"`
}

// DebugInfo is attached to responses when the caller asks for it.
type DebugInfo struct {
	UsedResumeID     string   `json:"used_resume_id,omitempty"`
	Tokens           []string `json:"tokens"`
	SourcesQueried   []string `json:"sources_queried"`
	SourcesResponded []string `json:"sources_responded"`
	DurationSeconds  float64  `json:"duration_seconds"`
	CacheHit         bool     `json:"cache_hit"`
	Degraded         bool     `json:"degraded,omitempty"`
}

// Response is the result of one FindLive or FindCached call.
type Response struct {
	Jobs  []MatchResult `json:"jobs"`
	Debug *DebugInfo    `json:"debug,omitempty"`
}

// Matcher runs the live-query flow: cache check, live fetch, embed,
// upsert, score, validate, respond.
type Matcher struct {
	cfg        *config.Config
	store      *store.Store
	aggregator *aggregate.Aggregator
	embedder   *embed.Client
	validator  *validate.Validator
	resumes    ResumeResolver
}

func NewMatcher(cfg *config.Config, st *store.Store, agg *aggregate.Aggregator, emb *embed.Client, val *validate.Validator, resumes ResumeResolver) *Matcher {
	return &Matcher{
		cfg:        cfg,
		store:      st,
		aggregator: agg,
		embedder:   emb,
		validator:  val,
		resumes:    resumes,
	}
}

// FindLive serves a match request, going to the live sources unless
// the cache is fresh enough for the requested filters.
func (m *Matcher) FindLive(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	profile, usedID, err := m.profileResume(ctx, req)
	if err != nil {
		return nil, err
	}

	debug := &DebugInfo{
		UsedResumeID: usedID,
		Tokens:       profile.Skills,
		Degraded:     len(profile.Embedding) == 0,
	}

	limit := m.requestLimit(req.Limit)
	filter := req.candidateFilter(m.cfg.CacheTTL)

	fresh, err := m.store.FreshCount(ctx, req.candidateFilter(m.cfg.CacheStaleness))
	if err != nil {
		return nil, fmt.Errorf("cache check failed: %w", err)
	}

	if fresh >= limit {
		observability.IncCacheHit()
		debug.CacheHit = true
	} else {
		observability.IncCacheMiss()
		if err := m.fetchAndCache(ctx, req, debug); err != nil {
			// Total outage: fall through to whatever the store holds.
			slog.Warn("live fetch failed entirely, serving stale cache", "error", err)
		}
	}

	candidates, err := m.store.Candidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		if !debug.CacheHit && len(debug.SourcesResponded) == 0 {
			return nil, ErrNoResults
		}
	}

	matches := match.Rank(profile, candidates, m.cfg.MinSimilarityThreshold, 0)
	results, verifiedURLs := m.validateTopN(ctx, matches, limit, req.Debug)
	if len(verifiedURLs) > 0 {
		// Best effort: the response is already validated either way.
		if err := m.store.MarkVerified(ctx, verifiedURLs, time.Now().UTC()); err != nil {
			slog.Warn("failed to record verified urls", "error", err)
		}
	}

	observability.ObserveMatchDuration(time.Since(started).Seconds())
	debug.DurationSeconds = time.Since(started).Seconds()

	resp := &Response{Jobs: results}
	if req.Debug {
		resp.Debug = debug
	}
	return resp, nil
}

// FindCached ranks what the store already holds. No live fetch, no
// URL validation.
func (m *Matcher) FindCached(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	profile, usedID, err := m.profileResume(ctx, req)
	if err != nil {
		return nil, err
	}

	candidates, err := m.store.Candidates(ctx, req.candidateFilter(m.cfg.CacheTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	matches := match.Rank(profile, candidates, m.cfg.MinSimilarityThreshold, m.requestLimit(req.Limit))
	results := make([]MatchResult, 0, len(matches))
	for _, mt := range matches {
		results = append(results, toResult(mt))
	}

	resp := &Response{Jobs: results}
	if req.Debug {
		resp.Debug = &DebugInfo{
			UsedResumeID:    usedID,
			Tokens:          profile.Skills,
			DurationSeconds: time.Since(started).Seconds(),
			CacheHit:        true,
			Degraded:        len(profile.Embedding) == 0,
		}
	}
	return resp, nil
}

// profileResume resolves the request's resume to text, then derives
// skills and an embedding. A resume that cannot be resolved or
// embedded at all fails the request; a dead embedding provider only
// degrades it.
func (m *Matcher) profileResume(ctx context.Context, req Request) (match.Profile, string, error) {
	text := strings.TrimSpace(req.ResumeText)
	usedID := ""

	if text == "" && req.ResumeID != "" && m.resumes != nil {
		resolved, err := m.resumes.Resolve(ctx, req.ResumeID)
		if err != nil {
			return match.Profile{}, "", fmt.Errorf("%w: %v", ErrResumeProfile, err)
		}
		text = resolved
		usedID = req.ResumeID
	}
	if text == "" {
		return match.Profile{}, "", ErrResumeProfile
	}

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, embed.ErrUnavailable) {
			slog.Warn("resume embedding unavailable, scoring degraded")
			observability.IncError(observability.ErrorEmbed)
			embedding = nil
		} else {
			return match.Profile{}, "", fmt.Errorf("%w: %v", ErrResumeProfile, err)
		}
	}

	return match.NewProfile(text, embedding), usedID, nil
}

// fetchAndCache runs the live path: aggregate all sources, normalize,
// embed, and upsert under the shared upsert contract.
func (m *Matcher) fetchAndCache(ctx context.Context, req Request, debug *DebugInfo) error {
	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.LiveFetchTimeout)
	defer cancel()

	started := time.Now()
	res := m.aggregator.Aggregate(fetchCtx, source.Query{
		Location: req.Location,
		Limit:    m.cfg.MaxJobsPerRequest,
	})
	observability.ObserveFetchDuration(time.Since(started).Seconds())

	debug.SourcesQueried = res.Queried
	debug.SourcesResponded = res.Responded

	if len(res.Postings) == 0 {
		if len(res.Responded) == 0 {
			return fmt.Errorf("all %d sources failed", len(res.Queried))
		}
		return nil
	}

	postings := m.embedPostings(ctx, res.Postings)

	n, err := m.store.Upsert(ctx, postings, aggregate.DedupKey, 0)
	if err != nil {
		observability.IncError(observability.ErrorStore)
		return fmt.Errorf("failed to cache postings: %w", err)
	}
	slog.Info("cached live postings", "fetched", len(res.Postings), "upserted", n)
	return nil
}

// embedPostings attaches embeddings in batches. Embedding failure
// leaves postings without vectors; scoring degrades rather than the
// request failing.
func (m *Matcher) embedPostings(ctx context.Context, postings []source.Posting) []source.Posting {
	batch := m.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 16
	}

	for start := 0; start < len(postings); start += batch {
		end := min(start+batch, len(postings))

		texts := make([]string, 0, end-start)
		for _, p := range postings[start:end] {
			texts = append(texts, embedText(p))
		}

		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			observability.IncError(observability.ErrorEmbed)
			slog.Warn("posting embedding failed, batch left unembedded", "error", err)
			continue
		}
		for i := range vectors {
			postings[start+i].Embedding = vectors[i]
		}
		observability.IncPostingsEmbedded(end - start)
	}
	return postings
}

func embedText(p source.Posting) string {
	return p.Title + "\n" + p.Company + "\n" + p.Description + "\n" + p.Requirements
}

// validateTopN confirms apply URLs in score order, pulling the next
// ranked posting whenever one fails, until limit slots are filled or
// candidates run out. With bypass set, validation is skipped entirely.
// The second return lists the URLs that passed, for the store
// write-back.
func (m *Matcher) validateTopN(ctx context.Context, matches []match.Match, limit int, bypass bool) ([]MatchResult, []string) {
	results := make([]MatchResult, 0, limit)

	if bypass {
		for _, mt := range matches {
			if len(results) >= limit {
				break
			}
			results = append(results, toResult(mt))
		}
		return results, nil
	}

	var verifiedURLs []string
	for i := 0; i < len(matches) && len(results) < limit; {
		// Validate a window of the next candidates in one pool pass.
		window := min(limit-len(results), len(matches)-i)
		batch := make([]source.Posting, 0, window)
		for _, mt := range matches[i : i+window] {
			batch = append(batch, mt.Posting)
		}

		survivors := m.validator.FilterReachable(ctx, batch)
		reachable := make(map[string]time.Time, len(survivors))
		for _, p := range survivors {
			reachable[p.ApplyURL] = p.LastVerified
		}

		for _, mt := range matches[i : i+window] {
			verifiedAt, ok := reachable[mt.Posting.ApplyURL]
			observability.IncURLValidated(ok)
			if !ok {
				continue
			}
			mt.Posting.LastVerified = verifiedAt
			results = append(results, toResult(mt))
			verifiedURLs = append(verifiedURLs, mt.Posting.ApplyURL)
		}
		i += window
	}
	return results, verifiedURLs
}

func toResult(mt match.Match) MatchResult {
	return MatchResult{
		Posting:        mt.Posting,
		MatchScore:     mt.Score,
		MatchingSkills: mt.MatchingSkills,
	}
}

func (m *Matcher) requestLimit(limit int) int {
	if limit <= 0 || limit > m.cfg.MaxJobsPerRequest {
		return m.cfg.MaxJobsPerRequest
	}
	return limit
}
