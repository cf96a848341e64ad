package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

var titleCaser = cases.Title(language.English)

type greenhouseBoard struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
}

// GreenhouseConnector reads the public Greenhouse job board API for a
// set of company board slugs.
type GreenhouseConnector struct {
	client  *httpx.Client
	slugs   []string
	baseURL string
}

func NewGreenhouseConnector(client *httpx.Client, slugs []string) *GreenhouseConnector {
	return &GreenhouseConnector{
		client:  client,
		slugs:   slugs,
		baseURL: "https://boards-api.greenhouse.io",
	}
}

func (g *GreenhouseConnector) Name() string { return "greenhouse" }

func (g *GreenhouseConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	var postings []Posting
	var unavailable int

	for _, slug := range g.slugs {
		if ctx.Err() != nil {
			return postings, nil // deadline: keep what we have
		}

		batch, err := g.fetchBoard(ctx, slug)
		if err != nil {
			if httpx.IsThrottled(err) {
				unavailable++
			}
			slog.Warn("greenhouse board fetch failed", "slug", slug, "error", err)
			continue
		}
		postings = append(postings, batch...)
	}

	if len(postings) == 0 && unavailable == len(g.slugs) && len(g.slugs) > 0 {
		return nil, fmt.Errorf("greenhouse: %w", ErrUnavailable)
	}
	return postings, nil
}

func (g *GreenhouseConnector) fetchBoard(ctx context.Context, slug string) ([]Posting, error) {
	url := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", g.baseURL, slug)
	resp, err := g.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var board greenhouseBoard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("greenhouse decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(board.Jobs))
	var dropped int
	for _, j := range board.Jobs {
		if j.ID == 0 || j.Title == "" || j.AbsoluteURL == "" {
			dropped++
			continue
		}
		raw, _ := json.Marshal(j)
		postings = append(postings, Posting{
			Source:      "greenhouse",
			SourceUID:   fmt.Sprintf("%d", j.ID),
			Title:       j.Title,
			Company:     titleCaser.String(slug),
			Description: NormalizeDescription(j.Content),
			Location:    j.Location.Name,
			ApplyURL:    j.AbsoluteURL,
			JobType:     DetectJobType(j.Title),
			Remote:      DetectRemote(j.Title + " " + j.Location.Name),
			PostedAt:    parseISOTime(j.UpdatedAt),
			Raw:         raw,
		})
	}
	if dropped > 0 {
		slog.Debug("greenhouse dropped malformed entries", "slug", slug, "count", dropped)
	}
	return postings, nil
}

func parseISOTime(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t
		}
	}
	return time.Time{}
}
