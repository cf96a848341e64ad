package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

func TestGreenhouseFetchMapsPostings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/acme/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"jobs": [
				{
					"id": 4001,
					"title": "Senior Go Engineer",
					"content": "&lt;p&gt;Build &lt;b&gt;backend&lt;/b&gt; services in Python&lt;/p&gt;",
					"absolute_url": "https://boards.greenhouse.io/acme/jobs/4001",
					"updated_at": "2026-08-01T10:00:00Z",
					"location": {"name": "Remote - US"}
				},
				{
					"id": 0,
					"title": "Broken entry without id",
					"absolute_url": ""
				}
			]
		}`))
	}))
	defer srv.Close()

	conn := NewGreenhouseConnector(httpx.NewClient("test-agent", 5*time.Second), []string{"acme"})
	conn.baseURL = srv.URL

	postings, err := conn.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected malformed entry dropped, got %d postings", len(postings))
	}

	p := postings[0]
	if p.Source != "greenhouse" || p.SourceUID != "4001" {
		t.Fatalf("unexpected identity %s:%s", p.Source, p.SourceUID)
	}
	if p.SourceID() != "greenhouse:4001" {
		t.Fatalf("unexpected source id %q", p.SourceID())
	}
	if p.Company != "Acme" {
		t.Fatalf("expected slug title-cased to Acme, got %q", p.Company)
	}
	if p.Description != "Build backend services in Python" {
		t.Fatalf("expected escaped markup stripped, got %q", p.Description)
	}
	if !p.Remote {
		t.Fatalf("expected remote detected from location")
	}
	if p.JobType != TypeFullTime {
		t.Fatalf("expected full_time, got %q", p.JobType)
	}
	if p.PostedAt.IsZero() {
		t.Fatalf("expected posted_at parsed")
	}
	if len(p.Raw) == 0 {
		t.Fatalf("expected raw payload retained")
	}
}

func TestGreenhouseAllBoardsThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	conn := NewGreenhouseConnector(httpx.NewClient("test-agent", 5*time.Second), []string{"a", "b"})
	conn.baseURL = srv.URL

	_, err := conn.Fetch(context.Background(), Query{})
	if err == nil {
		t.Fatalf("expected error when every board rejects auth")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDetectJobType(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Software Engineering Intern", TypeInternship},
		{"Contract Go Developer", TypeContract},
		{"Part-Time Support Engineer", TypePartTime},
		{"Senior Backend Engineer", TypeFullTime},
	}
	for _, c := range cases {
		if got := DetectJobType(c.title); got != c.want {
			t.Fatalf("DetectJobType(%q) = %q, want %q", c.title, got, c.want)
		}
	}
}

func TestDetectRemote(t *testing.T) {
	if !DetectRemote("Fully Remote role") {
		t.Fatalf("expected remote detected")
	}
	if !DetectRemote("work from home friendly") {
		t.Fatalf("expected wfh phrasing detected")
	}
	if DetectRemote("Onsite in Berlin") {
		t.Fatalf("expected onsite role not flagged remote")
	}
}

func TestNormalizeDescription(t *testing.T) {
	got := NormalizeDescription("<p>Build   <b>backend</b> services</p><script>alert(1)</script>")
	if got != "Build backend services" {
		t.Fatalf("unexpected normalized text %q", got)
	}

	got = NormalizeDescription("plain   text\n\nhere")
	if got != "plain text here" {
		t.Fatalf("unexpected plain-text normalization %q", got)
	}

	got = NormalizeDescription("&lt;p&gt;Entity &amp; escaped&lt;/p&gt;")
	if got != "Entity & escaped" {
		t.Fatalf("unexpected entity-escaped normalization %q", got)
	}
}

func TestParseISOTime(t *testing.T) {
	if parseISOTime("2026-08-01T10:00:00Z").IsZero() {
		t.Fatalf("expected RFC3339 parsed")
	}
	if parseISOTime("2026-08-01").IsZero() {
		t.Fatalf("expected date-only parsed")
	}
	if !parseISOTime("not a date").IsZero() {
		t.Fatalf("expected garbage to produce zero time")
	}
}

func TestContentHashStable(t *testing.T) {
	p := Posting{Title: "Engineer", Company: "Acme", Description: "Build things", ApplyURL: "https://a"}
	q := p
	if p.ContentHash() != q.ContentHash() {
		t.Fatalf("identical content must hash identically")
	}

	q.Description = "Different duties"
	if p.ContentHash() == q.ContentHash() {
		t.Fatalf("changed content must change the hash")
	}
}
