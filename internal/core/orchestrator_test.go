package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baxromumarov/job-finder/internal/config"
	"github.com/baxromumarov/job-finder/internal/match"
	"github.com/baxromumarov/job-finder/internal/source"
	"github.com/baxromumarov/job-finder/internal/validate"
)

func TestRefreshSingleFlight(t *testing.T) {
	r := &Refresher{}
	r.running.Store(true)

	if err := r.Run(context.Background()); !errors.Is(err, ErrRefreshRunning) {
		t.Fatalf("expected ErrRefreshRunning while guard held, got %v", err)
	}
	if err := r.TriggerAsync(context.Background()); !errors.Is(err, ErrRefreshRunning) {
		t.Fatalf("expected TriggerAsync skipped while guard held, got %v", err)
	}

	r.running.Store(false)
	if r.running.Load() {
		t.Fatalf("guard should be released")
	}
}

func TestValidateTopNFallsBackToNextRanked(t *testing.T) {
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer dead.Close()

	m := &Matcher{
		cfg:       &config.Config{MaxJobsPerRequest: 10},
		validator: validate.New(2*time.Second, 4),
	}

	matches := []match.Match{
		{Score: 0.9, Posting: source.Posting{Title: "top", ApplyURL: alive.URL + "/1"}},
		{Score: 0.8, Posting: source.Posting{Title: "gone", ApplyURL: dead.URL + "/x"}},
		{Score: 0.7, Posting: source.Posting{Title: "next", ApplyURL: alive.URL + "/2"}},
	}

	results, verified := m.validateTopN(context.Background(), matches, 2, false)

	if len(results) != 2 {
		t.Fatalf("expected 2 results after fallback, got %d", len(results))
	}
	if results[0].Title != "top" || results[1].Title != "next" {
		t.Fatalf("expected dead link replaced by next-ranked, got %q then %q",
			results[0].Title, results[1].Title)
	}
	for _, r := range results {
		if r.LastVerified.IsZero() {
			t.Fatalf("expected returned postings verified this cycle")
		}
	}
	if len(verified) != 2 || verified[0] != alive.URL+"/1" || verified[1] != alive.URL+"/2" {
		t.Fatalf("expected only passing urls reported for write-back, got %v", verified)
	}
}

func TestValidateTopNBypass(t *testing.T) {
	m := &Matcher{cfg: &config.Config{MaxJobsPerRequest: 10}}

	matches := []match.Match{
		{Score: 0.9, Posting: source.Posting{Title: "a", ApplyURL: "https://unchecked.invalid/a"}},
		{Score: 0.8, Posting: source.Posting{Title: "b", ApplyURL: "https://unchecked.invalid/b"}},
	}

	results, verified := m.validateTopN(context.Background(), matches, 1, true)
	if len(results) != 1 || results[0].Title != "a" {
		t.Fatalf("expected bypass to return top-ranked without validation, got %v", results)
	}
	if verified != nil {
		t.Fatalf("bypass must not report urls as verified, got %v", verified)
	}
}

func TestMarkVerifiedReportsFailedURLs(t *testing.T) {
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer dead.Close()

	r := &Refresher{validator: validate.New(2*time.Second, 4)}

	postings := []source.Posting{
		{Title: "ok", ApplyURL: alive.URL + "/job"},
		{Title: "gone", ApplyURL: dead.URL + "/job"},
	}

	out, stale := r.markVerified(context.Background(), postings)
	if len(out) != 2 {
		t.Fatalf("expected failing postings kept, got %d", len(out))
	}
	if out[0].LastVerified.IsZero() {
		t.Fatalf("expected reachable posting stamped verified")
	}
	if !out[1].LastVerified.IsZero() {
		t.Fatalf("expected unreachable posting left unstamped")
	}
	if len(stale) != 1 || stale[0] != dead.URL+"/job" {
		t.Fatalf("expected failed url reported for explicit stale marking, got %v", stale)
	}
}

func TestProfileResumeRequiresInput(t *testing.T) {
	m := &Matcher{cfg: &config.Config{}}

	_, _, err := m.profileResume(context.Background(), Request{})
	if !errors.Is(err, ErrResumeProfile) {
		t.Fatalf("expected ErrResumeProfile for empty request, got %v", err)
	}
}

func TestRequestLimitClamped(t *testing.T) {
	m := &Matcher{cfg: &config.Config{MaxJobsPerRequest: 50}}

	if got := m.requestLimit(0); got != 50 {
		t.Fatalf("expected default limit 50, got %d", got)
	}
	if got := m.requestLimit(500); got != 50 {
		t.Fatalf("expected limit clamped to 50, got %d", got)
	}
	if got := m.requestLimit(10); got != 10 {
		t.Fatalf("expected explicit limit honored, got %d", got)
	}
}

type staticResolver struct {
	text string
	err  error
}

func (s *staticResolver) Resolve(ctx context.Context, id string) (string, error) {
	return s.text, s.err
}

func TestProfileResumeResolverFailure(t *testing.T) {
	m := &Matcher{
		cfg:     &config.Config{},
		resumes: &staticResolver{err: errors.New("service down")},
	}

	_, _, err := m.profileResume(context.Background(), Request{ResumeID: "r1"})
	if !errors.Is(err, ErrResumeProfile) {
		t.Fatalf("expected ErrResumeProfile on resolver failure, got %v", err)
	}
}
