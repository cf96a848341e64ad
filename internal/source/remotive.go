package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID              int    `json:"id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	CompanyName     string `json:"company_name"`
	JobType         string `json:"job_type"`
	PublicationDate string `json:"publication_date"`
	Location        string `json:"candidate_required_location"`
	Description     string `json:"description"`
}

// RemotiveConnector reads the public Remotive remote-jobs API. It needs
// no credentials, which makes it the default always-on source.
type RemotiveConnector struct {
	client   *httpx.Client
	category string
}

func NewRemotiveConnector(client *httpx.Client, category string) *RemotiveConnector {
	if category == "" {
		category = "software-dev"
	}
	return &RemotiveConnector{client: client, category: category}
}

func (r *RemotiveConnector) Name() string { return "remotive" }

func (r *RemotiveConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	url := "https://remotive.com/api/remote-jobs?category=" + r.category
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		if httpx.IsThrottled(err) {
			return nil, fmt.Errorf("remotive: %w", ErrUnavailable)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var data remotiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("remotive decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(data.Jobs))
	for _, j := range data.Jobs {
		if j.ID == 0 || j.Title == "" || j.URL == "" {
			continue
		}
		location := j.Location
		if location == "" {
			location = "Remote"
		}
		raw, _ := json.Marshal(j)
		postings = append(postings, Posting{
			Source:      "remotive",
			SourceUID:   strconv.Itoa(j.ID),
			Title:       j.Title,
			Company:     j.CompanyName,
			Description: NormalizeDescription(j.Description),
			Location:    location,
			ApplyURL:    j.URL,
			JobType:     remotiveJobType(j.JobType),
			Remote:      true,
			PostedAt:    parseRemotiveTime(j.PublicationDate),
			Raw:         raw,
		})
	}
	return postings, nil
}

func remotiveJobType(val string) string {
	switch strings.ToLower(val) {
	case "part_time", "part-time":
		return TypePartTime
	case "contract", "freelance":
		return TypeContract
	case "internship":
		return TypeInternship
	default:
		return TypeFullTime
	}
}

func parseRemotiveTime(val string) (t time.Time) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, val); err == nil {
			return parsed
		}
	}
	return
}
