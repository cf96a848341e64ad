// Package match ranks postings against a candidate profile. The score
// blends semantic similarity, skill overlap, and seniority alignment.
package match

import (
	"math"
	"sort"

	"github.com/baxromumarov/job-finder/internal/source"
)

// Score component weights. When embeddings are unavailable the
// similarity term drops out and the remaining weights are
// renormalized to keep scores on the same 0..1 scale.
const (
	weightSimilarity = 0.6
	weightSkills     = 0.3
	weightExperience = 0.1

	degradedWeightSkills     = weightSkills / (weightSkills + weightExperience)
	degradedWeightExperience = weightExperience / (weightSkills + weightExperience)
)

// Profile is the candidate side of a match.
type Profile struct {
	ResumeText string
	Embedding  []float64
	Skills     []string
	Level      string
}

// NewProfile derives skills and seniority from resume text. Embedding
// may be nil when the embedding provider is down; scoring degrades
// gracefully.
func NewProfile(resumeText string, embedding []float64) Profile {
	return Profile{
		ResumeText: resumeText,
		Embedding:  embedding,
		Skills:     ExtractSkills(resumeText),
		Level:      DetectResumeLevel(resumeText),
	}
}

// Match is a scored posting.
type Match struct {
	Posting        source.Posting
	Score          float64
	Similarity     float64
	SkillScore     float64
	MatchingSkills []string
	Experience     float64
	Degraded       bool
}

// ScorePosting computes the blended match score for one posting.
func ScorePosting(profile Profile, p source.Posting) Match {
	jobText := p.Title + " " + p.Description + " " + p.Requirements
	jobSkills := ExtractSkills(jobText)
	skillScore, matched := SkillOverlap(profile.Skills, jobSkills)

	jobLevel := DetectJobLevel(p.Title, p.Description)
	experience := ExperienceAlignment(jobLevel, profile.Level)

	m := Match{
		Posting:        p,
		SkillScore:     skillScore,
		MatchingSkills: matched,
		Experience:     experience,
	}

	if len(profile.Embedding) > 0 && len(p.Embedding) > 0 {
		m.Similarity = Cosine(profile.Embedding, p.Embedding)
		m.Score = weightSimilarity*m.Similarity + weightSkills*skillScore + weightExperience*experience
	} else {
		m.Degraded = true
		m.Score = degradedWeightSkills*skillScore + degradedWeightExperience*experience
	}
	return m
}

// Rank scores every posting, drops those below threshold, and returns
// at most limit matches ordered by score descending, freshest posting
// first on ties.
func Rank(profile Profile, postings []source.Posting, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(postings))
	for _, p := range postings {
		m := ScorePosting(profile, p)
		if m.Score < threshold {
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Posting.PostedAt.After(matches[j].Posting.PostedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Cosine returns the cosine similarity of two vectors, clamped to
// [0, 1]. Mismatched or zero-length vectors score zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
