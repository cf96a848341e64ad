package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

type ashbyBoard struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employmentType"`
	IsRemote       bool   `json:"isRemote"`
	PublishedAt    string `json:"publishedAt"`
	JobURL         string `json:"jobUrl"`
	ApplyURL       string `json:"applyUrl"`
	DescriptionRaw string `json:"descriptionPlain"`
}

// AshbyConnector reads the public Ashby job board API for a set of
// organization slugs.
type AshbyConnector struct {
	client *httpx.Client
	slugs  []string
}

func NewAshbyConnector(client *httpx.Client, slugs []string) *AshbyConnector {
	return &AshbyConnector{client: client, slugs: slugs}
}

func (a *AshbyConnector) Name() string { return "ashby" }

func (a *AshbyConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	var postings []Posting
	var unavailable int

	for _, slug := range a.slugs {
		if ctx.Err() != nil {
			return postings, nil
		}

		batch, err := a.fetchBoard(ctx, slug)
		if err != nil {
			if httpx.IsThrottled(err) {
				unavailable++
			}
			slog.Warn("ashby fetch failed", "slug", slug, "error", err)
			continue
		}
		postings = append(postings, batch...)
	}

	if len(postings) == 0 && unavailable == len(a.slugs) && len(a.slugs) > 0 {
		return nil, fmt.Errorf("ashby: %w", ErrUnavailable)
	}
	return postings, nil
}

func (a *AshbyConnector) fetchBoard(ctx context.Context, slug string) ([]Posting, error) {
	url := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s?includeCompensation=true", slug)
	resp, err := a.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var board ashbyBoard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("ashby decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		applyURL := j.ApplyURL
		if applyURL == "" {
			applyURL = j.JobURL
		}
		if j.ID == "" || j.Title == "" || applyURL == "" {
			continue
		}
		raw, _ := json.Marshal(j)
		postings = append(postings, Posting{
			Source:      "ashby",
			SourceUID:   j.ID,
			Title:       j.Title,
			Company:     titleCaser.String(slug),
			Description: j.DescriptionRaw,
			Location:    j.Location,
			ApplyURL:    applyURL,
			JobType:     DetectJobType(j.EmploymentType + " " + j.Title),
			Remote:      j.IsRemote || DetectRemote(j.Title+" "+j.Location),
			PostedAt:    parseISOTime(j.PublishedAt),
			Raw:         raw,
		})
	}
	return postings, nil
}
