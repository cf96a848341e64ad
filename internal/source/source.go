// Package source defines the normalized job posting shape and one
// connector per external posting API. Connectors are stateless: each
// Fetch call maps the provider's own response format into Posting.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable marks a source that cannot serve this round, typically
// repeated auth or rate-limit failures. The aggregator treats it as
// "zero results from this source", never as a fatal error.
var ErrUnavailable = errors.New("source unavailable")

// Posting is one normalized external job listing. Connectors fill the
// public fields; embedding and cache metadata are attached downstream.
type Posting struct {
	Source       string          `json:"source"`
	SourceUID    string          `json:"source_uid"`
	Title        string          `json:"title"`
	Company      string          `json:"company"`
	Description  string          `json:"description"`
	Location     string          `json:"location"`
	SalaryMin    *int            `json:"salary_min,omitempty"`
	SalaryMax    *int            `json:"salary_max,omitempty"`
	JobType      string          `json:"job_type,omitempty"`
	Remote       bool            `json:"remote"`
	ApplyURL     string          `json:"apply_url"`
	Requirements string          `json:"requirements,omitempty"`
	PostedAt     time.Time       `json:"posted_at,omitzero"`
	Raw          json.RawMessage `json:"-"`

	Embedding    []float64 `json:"-"`
	CachedAt     time.Time `json:"cached_at,omitzero"`
	LastVerified time.Time `json:"last_verified,omitzero"`
}

// SourceID is the per-source dedup identity: source name + native id.
// Empty when the provider exposes no stable id.
func (p Posting) SourceID() string {
	if p.SourceUID == "" {
		return ""
	}
	return p.Source + ":" + p.SourceUID
}

// ContentHash fingerprints the fields a candidate actually sees.
// Unchanged content keeps its hash across refreshes, which lets the
// cache skip bumping freshness for postings that merely got re-fetched.
func (p Posting) ContentHash() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		p.Title, p.Company, p.Location, p.Description, p.Requirements, p.ApplyURL,
	}, "|")))
	return hex.EncodeToString(h[:])
}

// Query carries the caller's search constraints into a fetch.
type Query struct {
	Location string
	Keywords []string
	Limit    int
}

// Connector fetches current postings from one external API. It must
// honor ctx: when the deadline hits mid-fetch it returns whatever was
// already parsed rather than an error. Individual malformed entries are
// dropped, never propagated as a fetch failure.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]Posting, error)
}

// Job type values derived from posting text.
const (
	TypeFullTime   = "full_time"
	TypePartTime   = "part_time"
	TypeContract   = "contract"
	TypeInternship = "internship"
)

// DetectJobType infers the employment type from the title.
func DetectJobType(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "intern"):
		return TypeInternship
	case strings.Contains(t, "contract") || strings.Contains(t, "freelance"):
		return TypeContract
	case strings.Contains(t, "part-time") || strings.Contains(t, "part time"):
		return TypePartTime
	default:
		return TypeFullTime
	}
}

// DetectRemote reports whether the posting text advertises remote work.
func DetectRemote(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "remote") ||
		strings.Contains(t, "work from home") ||
		strings.Contains(t, "wfh")
}
