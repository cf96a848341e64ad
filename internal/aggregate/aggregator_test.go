package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baxromumarov/job-finder/internal/source"
)

type stubConnector struct {
	name     string
	postings []source.Posting
	err      error
	delay    time.Duration
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Fetch(ctx context.Context, q source.Query) ([]source.Posting, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			// Deadline mid-fetch: nothing parsed yet.
			return nil, nil
		}
	}
	return s.postings, s.err
}

func TestAggregateMergesSources(t *testing.T) {
	a := New([]source.Connector{
		&stubConnector{name: "one", postings: []source.Posting{
			{Source: "one", SourceUID: "1", Title: "Go Developer", Company: "Acme", ApplyURL: "https://a"},
		}},
		&stubConnector{name: "two", postings: []source.Posting{
			{Source: "two", SourceUID: "9", Title: "Rust Developer", Company: "Beta", ApplyURL: "https://b"},
		}},
	}, 4)

	res := a.Aggregate(context.Background(), source.Query{})

	if len(res.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(res.Postings))
	}
	if len(res.Queried) != 2 || len(res.Responded) != 2 {
		t.Fatalf("expected 2 queried / 2 responded, got %d / %d", len(res.Queried), len(res.Responded))
	}
	if len(res.Failed) != 0 {
		t.Fatalf("expected no failures, got %v", res.Failed)
	}
}

func TestAggregateAbsorbsSourceFailure(t *testing.T) {
	a := New([]source.Connector{
		&stubConnector{name: "down", err: source.ErrUnavailable},
		&stubConnector{name: "up", postings: []source.Posting{
			{Source: "up", SourceUID: "1", Title: "Engineer", Company: "Acme", ApplyURL: "https://a"},
		}},
	}, 4)

	res := a.Aggregate(context.Background(), source.Query{})

	if len(res.Postings) != 1 {
		t.Fatalf("expected the healthy source's posting, got %d", len(res.Postings))
	}
	if _, ok := res.Failed["down"]; !ok {
		t.Fatalf("expected 'down' recorded as failed, got %v", res.Failed)
	}
	if len(res.Responded) != 1 || res.Responded[0] != "up" {
		t.Fatalf("expected only 'up' responded, got %v", res.Responded)
	}
}

func TestAggregateExcludesTimedOutSource(t *testing.T) {
	a := New([]source.Connector{
		&stubConnector{name: "slow", delay: 500 * time.Millisecond, postings: []source.Posting{
			{Source: "slow", SourceUID: "1", Title: "Late", Company: "Acme", ApplyURL: "https://late"},
		}},
		&stubConnector{name: "fast", postings: []source.Posting{
			{Source: "fast", SourceUID: "1", Title: "Engineer", Company: "Beta", ApplyURL: "https://fast"},
		}},
	}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := a.Aggregate(ctx, source.Query{})

	if len(res.Postings) != 1 || res.Postings[0].Source != "fast" {
		t.Fatalf("expected only the fast source's posting, got %v", res.Postings)
	}
	if len(res.Queried) != 2 {
		t.Fatalf("queried must reflect all sources, got %v", res.Queried)
	}
}

func TestDedupeWithinSource(t *testing.T) {
	now := time.Now()
	postings := []source.Posting{
		{Source: "gh", SourceUID: "42", Title: "Engineer", Company: "Acme", PostedAt: now.Add(-time.Hour)},
		{Source: "gh", SourceUID: "42", Title: "Engineer (updated)", Company: "Acme", PostedAt: now},
	}

	out := Dedupe(postings)
	if len(out) != 1 {
		t.Fatalf("expected 1 posting after dedup, got %d", len(out))
	}
	if out[0].Title != "Engineer (updated)" {
		t.Fatalf("expected the newer posting kept, got %q", out[0].Title)
	}
}

func TestDedupeCollapsesAcrossSources(t *testing.T) {
	now := time.Now()
	postings := []source.Posting{
		{Source: "gh", SourceUID: "1", Title: "Backend  Engineer", Company: "ACME", Location: "Remote", PostedAt: now.Add(-time.Hour)},
		{Source: "lever", SourceUID: "x9", Title: "backend engineer", Company: "acme", Location: "remote", PostedAt: now},
	}

	out := Dedupe(postings)
	if len(out) != 1 {
		t.Fatalf("expected cross-source duplicates collapsed, got %d postings", len(out))
	}
	if out[0].Source != "lever" {
		t.Fatalf("expected the most recently posted copy kept, got source %q", out[0].Source)
	}
}

func TestDedupeZeroDateLosesToReal(t *testing.T) {
	postings := []source.Posting{
		{Title: "Engineer", Company: "Acme", Location: "NYC", PostedAt: time.Now()},
		{Title: "Engineer", Company: "Acme", Location: "NYC"},
	}

	out := Dedupe(postings)
	if len(out) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(out))
	}
	if out[0].PostedAt.IsZero() {
		t.Fatalf("expected the dated posting to win over the undated one")
	}
}

func TestDedupKeyPrefersSourceID(t *testing.T) {
	withID := source.Posting{Source: "gh", SourceUID: "7", Title: "A", Company: "B"}
	if got := DedupKey(withID); got != "gh:7" {
		t.Fatalf("expected source-native key, got %q", got)
	}

	noID := source.Posting{Title: "Backend  Engineer", Company: " Acme ", Location: "Berlin"}
	if got := DedupKey(noID); got != "backend engineer|acme|berlin" {
		t.Fatalf("unexpected content key %q", got)
	}
}

func TestAggregateErrorNotUnavailable(t *testing.T) {
	a := New([]source.Connector{
		&stubConnector{name: "broken", err: errors.New("decode failed")},
	}, 1)

	res := a.Aggregate(context.Background(), source.Query{})
	if res.Failed["broken"] != "decode failed" {
		t.Fatalf("expected failure reason recorded, got %v", res.Failed)
	}
}
