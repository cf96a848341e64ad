package match

import (
	"math"
	"testing"
	"time"

	"github.com/baxromumarov/job-finder/internal/source"
)

func TestCosine(t *testing.T) {
	a := []float64{1, 0, 0}
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected identical vectors to score 1.0, got %f", got)
	}
	if got := Cosine(a, []float64{0, 1, 0}); got != 0 {
		t.Fatalf("expected orthogonal vectors to score 0, got %f", got)
	}
	// Opposite vectors clamp to 0, never negative.
	if got := Cosine(a, []float64{-1, 0, 0}); got != 0 {
		t.Fatalf("expected opposite vectors to clamp to 0, got %f", got)
	}
	if got := Cosine(a, []float64{1, 0}); got != 0 {
		t.Fatalf("expected mismatched lengths to score 0, got %f", got)
	}
}

func TestSkillOverlapScenario(t *testing.T) {
	resume := []string{"python", "react"}

	// Posting A requires python+django, B requires python+react+aws.
	overlapA, matchedA := SkillOverlap(resume, []string{"python", "django"})
	overlapB, matchedB := SkillOverlap(resume, []string{"python", "react", "aws"})

	if math.Abs(overlapA-0.5) > 1e-9 {
		t.Fatalf("expected overlap A = 0.5, got %f", overlapA)
	}
	if math.Abs(overlapB-2.0/3.0) > 1e-9 {
		t.Fatalf("expected overlap B = 2/3, got %f", overlapB)
	}
	if len(matchedA) != 1 || matchedA[0] != "python" {
		t.Fatalf("expected A to match [python], got %v", matchedA)
	}
	if len(matchedB) != 2 {
		t.Fatalf("expected B to match 2 skills, got %v", matchedB)
	}
}

func TestSkillOverlapEmptyJobSkills(t *testing.T) {
	score, matched := SkillOverlap([]string{"python"}, nil)
	if score != 0 || matched != nil {
		t.Fatalf("job with no known skills must score 0, got %f / %v", score, matched)
	}
}

func TestRankOrdersHigherOverlapFirst(t *testing.T) {
	// Equal embeddings on both sides: the skill term decides.
	vec := make([]float64, 4)
	vec[0] = 1

	profile := Profile{
		Skills:    []string{"python", "react"},
		Embedding: vec,
		Level:     LevelEntry,
	}

	postingA := source.Posting{
		Title:       "Engineer",
		Description: "We use python and django.",
		Embedding:   vec,
		PostedAt:    time.Now(),
	}
	postingB := source.Posting{
		Title:       "Engineer",
		Description: "We use python, react and aws.",
		Embedding:   vec,
		PostedAt:    time.Now(),
	}

	matches := Rank(profile, []source.Posting{postingA, postingB}, 0, 0)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Posting.Description != postingB.Description {
		t.Fatalf("expected posting B ranked first")
	}
	for _, m := range matches {
		if m.Score < 0 || m.Score > 1 {
			t.Fatalf("score out of [0,1]: %f", m.Score)
		}
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("results not sorted non-increasing: %f then %f", matches[0].Score, matches[1].Score)
	}
}

func TestRankThresholdAndLimit(t *testing.T) {
	profile := Profile{Skills: []string{"go"}, Level: LevelEntry}

	postings := []source.Posting{
		{Title: "Go Developer", Description: "go go go"},
		{Title: "Chef", Description: "cooking"},
	}

	matches := Rank(profile, postings, 0.9, 0)
	for _, m := range matches {
		if m.Score < 0.9 {
			t.Fatalf("threshold not applied: %f", m.Score)
		}
	}

	matches = Rank(profile, postings, 0, 1)
	if len(matches) != 1 {
		t.Fatalf("limit not applied, got %d matches", len(matches))
	}
}

func TestRankTiesBrokenByPostedAt(t *testing.T) {
	now := time.Now()
	profile := Profile{Skills: []string{"python"}, Level: LevelEntry}

	older := source.Posting{Title: "Engineer", Description: "python", PostedAt: now.Add(-48 * time.Hour)}
	newer := source.Posting{Title: "Engineer", Description: "python", PostedAt: now}

	matches := Rank(profile, []source.Posting{older, newer}, 0, 0)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if !matches[0].Posting.PostedAt.Equal(now) {
		t.Fatalf("expected newest posting first on tied score")
	}
}

func TestDegradedModeReachesFullScore(t *testing.T) {
	// No embeddings anywhere: perfect skill + experience alignment must
	// still reach 1.0 under the renormalized weights.
	profile := Profile{
		Skills: []string{"python", "django"},
		Level:  LevelSenior,
	}
	posting := source.Posting{
		Title:       "Senior Engineer",
		Description: "python and django",
	}

	m := ScorePosting(profile, posting)
	if !m.Degraded {
		t.Fatalf("expected degraded mode without embeddings")
	}
	if math.Abs(m.Score-1.0) > 1e-9 {
		t.Fatalf("expected degraded perfect match to score 1.0, got %f", m.Score)
	}
}

func TestExperienceAlignment(t *testing.T) {
	cases := []struct {
		job, resume string
		want        float64
	}{
		{LevelSenior, LevelSenior, 1.0},
		{LevelSenior, LevelMid, 0.7},
		{LevelMid, LevelSenior, 0.7},
		{LevelMid, LevelEntry, 0.5},
		{LevelEntry, LevelMid, 0.5},
		{LevelSenior, LevelEntry, 0.3},
		{LevelEntry, LevelSenior, 0.3},
		{"", LevelSenior, 0.5},
	}

	for _, c := range cases {
		if got := ExperienceAlignment(c.job, c.resume); got != c.want {
			t.Fatalf("alignment(%q, %q) = %f, want %f", c.job, c.resume, got, c.want)
		}
	}
}

func TestDetectJobLevel(t *testing.T) {
	if got := DetectJobLevel("Senior Backend Engineer", ""); got != LevelSenior {
		t.Fatalf("expected senior, got %s", got)
	}
	if got := DetectJobLevel("Engineer", "mid-level role"); got != LevelMid {
		t.Fatalf("expected mid, got %s", got)
	}
	if got := DetectJobLevel("Junior Developer", ""); got != LevelEntry {
		t.Fatalf("expected entry, got %s", got)
	}
	if got := DetectJobLevel("Developer", "great team"); got != LevelEntry {
		t.Fatalf("expected unmarked posting to default to entry, got %s", got)
	}
}

func TestExtractSkills(t *testing.T) {
	skills := ExtractSkills("We build services in Go with PostgreSQL and Docker on AWS.")

	want := map[string]bool{"go": true, "postgresql": true, "docker": true, "aws": true}
	for _, s := range skills {
		delete(want, s)
	}
	if len(want) > 0 {
		t.Fatalf("missing expected skills: %v (got %v)", want, skills)
	}

	if got := ExtractSkills(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
}
