package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

type leverPosting struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	HostedURL   string `json:"hostedUrl"`
	CreatedAt   int64  `json:"createdAt"`
	Description string `json:"descriptionPlain"`
	Categories  struct {
		Team       string `json:"team"`
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

// LeverConnector reads the public Lever postings API for a set of
// company slugs.
type LeverConnector struct {
	client *httpx.Client
	slugs  []string
}

func NewLeverConnector(client *httpx.Client, slugs []string) *LeverConnector {
	return &LeverConnector{client: client, slugs: slugs}
}

func (l *LeverConnector) Name() string { return "lever" }

func (l *LeverConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	var postings []Posting
	var unavailable int

	for _, slug := range l.slugs {
		if ctx.Err() != nil {
			return postings, nil
		}

		batch, err := l.fetchCompany(ctx, slug)
		if err != nil {
			if httpx.IsThrottled(err) {
				unavailable++
			}
			slog.Warn("lever fetch failed", "slug", slug, "error", err)
			continue
		}
		postings = append(postings, batch...)
	}

	if len(postings) == 0 && unavailable == len(l.slugs) && len(l.slugs) > 0 {
		return nil, fmt.Errorf("lever: %w", ErrUnavailable)
	}
	return postings, nil
}

func (l *LeverConnector) fetchCompany(ctx context.Context, slug string) ([]Posting, error) {
	url := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", slug)
	resp, err := l.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []leverPosting
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("lever decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" || p.Text == "" || p.HostedURL == "" {
			continue
		}
		var posted time.Time
		if p.CreatedAt > 0 {
			posted = time.UnixMilli(p.CreatedAt).UTC()
		}
		rawJSON, _ := json.Marshal(p)
		postings = append(postings, Posting{
			Source:      "lever",
			SourceUID:   p.ID,
			Title:       p.Text,
			Company:     titleCaser.String(slug),
			Description: p.Description,
			Location:    p.Categories.Location,
			ApplyURL:    p.HostedURL,
			JobType:     leverJobType(p),
			Remote:      DetectRemote(p.Text + " " + p.Categories.Location),
			PostedAt:    posted,
			Raw:         rawJSON,
		})
	}
	return postings, nil
}

func leverJobType(p leverPosting) string {
	if p.Categories.Commitment != "" {
		return DetectJobType(p.Categories.Commitment)
	}
	return DetectJobType(p.Text)
}
