package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

type smartRecruitersPage struct {
	Content []smartRecruitersPosting `json:"content"`
}

type smartRecruitersPosting struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ReleasedAt string `json:"releasedDate"`
	Location   struct {
		City    string `json:"city"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	TypeOfEmployment struct {
		Label string `json:"label"`
	} `json:"typeOfEmployment"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
	Ref string `json:"ref"`
}

type smartRecruitersDetail struct {
	ApplyURL string `json:"applyUrl"`
	JobAd    struct {
		Sections struct {
			JobDescription struct {
				Text string `json:"text"`
			} `json:"jobDescription"`
			Qualifications struct {
				Text string `json:"text"`
			} `json:"qualifications"`
		} `json:"sections"`
	} `json:"jobAd"`
}

// SmartRecruitersConnector reads the public SmartRecruiters posting API
// for a set of company identifiers. The list endpoint has no
// description or apply URL, so each posting costs one detail request.
type SmartRecruitersConnector struct {
	client *httpx.Client
	slugs  []string
}

func NewSmartRecruitersConnector(client *httpx.Client, slugs []string) *SmartRecruitersConnector {
	return &SmartRecruitersConnector{client: client, slugs: slugs}
}

func (s *SmartRecruitersConnector) Name() string { return "smartrecruiters" }

func (s *SmartRecruitersConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	var postings []Posting
	var unavailable int

	for _, slug := range s.slugs {
		if ctx.Err() != nil {
			return postings, nil
		}

		batch, err := s.fetchCompany(ctx, slug, q.Limit)
		if err != nil {
			if httpx.IsThrottled(err) {
				unavailable++
			}
			slog.Warn("smartrecruiters fetch failed", "slug", slug, "error", err)
			continue
		}
		postings = append(postings, batch...)
	}

	if len(postings) == 0 && unavailable == len(s.slugs) && len(s.slugs) > 0 {
		return nil, fmt.Errorf("smartrecruiters: %w", ErrUnavailable)
	}
	return postings, nil
}

func (s *SmartRecruitersConnector) fetchCompany(ctx context.Context, slug string, limit int) ([]Posting, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	url := fmt.Sprintf("https://api.smartrecruiters.com/v1/companies/%s/postings?limit=%d", slug, limit)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page smartRecruitersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("smartrecruiters decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(page.Content))
	for _, p := range page.Content {
		if ctx.Err() != nil {
			return postings, nil
		}
		if p.ID == "" || p.Name == "" {
			continue
		}

		detail, err := s.fetchDetail(ctx, slug, p.ID)
		if err != nil {
			slog.Debug("smartrecruiters detail fetch failed", "posting", p.ID, "error", err)
			continue
		}
		if detail.ApplyURL == "" {
			continue
		}

		company := p.Company.Name
		if company == "" {
			company = titleCaser.String(slug)
		}
		location := p.Location.City
		if location == "" {
			location = p.Location.Country
		}

		raw, _ := json.Marshal(p)
		postings = append(postings, Posting{
			Source:       "smartrecruiters",
			SourceUID:    p.ID,
			Title:        p.Name,
			Company:      company,
			Description:  NormalizeDescription(detail.JobAd.Sections.JobDescription.Text),
			Requirements: detail.JobAd.Sections.Qualifications.Text,
			Location:     location,
			ApplyURL:     detail.ApplyURL,
			JobType:      DetectJobType(p.TypeOfEmployment.Label + " " + p.Name),
			Remote:       p.Location.Remote || DetectRemote(p.Name),
			PostedAt:     parseISOTime(p.ReleasedAt),
			Raw:          raw,
		})
	}
	return postings, nil
}

func (s *SmartRecruitersConnector) fetchDetail(ctx context.Context, slug, id string) (*smartRecruitersDetail, error) {
	url := fmt.Sprintf("https://api.smartrecruiters.com/v1/companies/%s/postings/%s", slug, id)
	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var detail smartRecruitersDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("smartrecruiters detail decode failed: %w", err)
	}
	return &detail, nil
}
