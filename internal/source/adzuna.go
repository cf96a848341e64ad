package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

const (
	adzunaPageSize = 50
	adzunaMaxPages = 3
)

// Country codes Adzuna serves; anything else falls back to "us".
var adzunaCountries = map[string]string{
	"us": "us", "gb": "gb", "au": "au", "br": "br", "ca": "ca",
	"de": "de", "fr": "fr", "in": "in", "it": "it", "mx": "mx",
	"nl": "nl", "nz": "nz", "pl": "pl", "sg": "sg", "es": "es",
	"se": "se", "za": "za",
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
}

type adzunaResult struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
	RedirectURL  string  `json:"redirect_url"`
	Created      string  `json:"created"`
	ContractTime string  `json:"contract_time"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// AdzunaConnector searches the Adzuna aggregator API. Missing
// credentials make Fetch return no postings rather than an error, so a
// half-configured deployment still serves the other sources.
type AdzunaConnector struct {
	client  *httpx.Client
	appID   string
	appKey  string
	country string
}

func NewAdzunaConnector(client *httpx.Client, appID, appKey, country string) *AdzunaConnector {
	if _, ok := adzunaCountries[strings.ToLower(country)]; !ok {
		country = "us"
	}
	return &AdzunaConnector{client: client, appID: appID, appKey: appKey, country: strings.ToLower(country)}
}

func (a *AdzunaConnector) Name() string { return "adzuna" }

func (a *AdzunaConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if a.appID == "" || a.appKey == "" {
		slog.Info("adzuna credentials not set, skipping")
		return nil, nil
	}

	country := a.country
	if q.Location != "" {
		if c, ok := adzunaCountries[strings.ToLower(q.Location)]; ok {
			country = c
		}
	}

	what := "software engineer"
	if len(q.Keywords) > 0 {
		what = strings.Join(q.Keywords, " ")
	}

	var postings []Posting
	for page := 1; page <= adzunaMaxPages; page++ {
		if ctx.Err() != nil {
			return postings, nil
		}

		batch, err := a.fetchPage(ctx, country, what, q.Location, page)
		if err != nil {
			if httpx.IsThrottled(err) && len(postings) == 0 {
				return nil, fmt.Errorf("adzuna: %w", ErrUnavailable)
			}
			slog.Warn("adzuna page fetch failed", "page", page, "error", err)
			return postings, nil
		}
		postings = append(postings, batch...)
		if len(batch) < adzunaPageSize {
			break
		}
	}
	return postings, nil
}

func (a *AdzunaConnector) fetchPage(ctx context.Context, country, what, where string, page int) ([]Posting, error) {
	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", what)
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")
	if where != "" {
		if _, isCountry := adzunaCountries[strings.ToLower(where)]; !isCountry {
			params.Set("where", where)
		}
	}

	endpoint := fmt.Sprintf("https://api.adzuna.com/v1/api/jobs/%s/search/%d?%s", country, page, params.Encode())
	resp, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("adzuna decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(data.Results))
	for _, r := range data.Results {
		if r.ID == "" || r.Title == "" || r.RedirectURL == "" {
			continue
		}
		raw, _ := json.Marshal(r)
		p := Posting{
			Source:      "adzuna",
			SourceUID:   r.ID,
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Description: r.Description,
			Location:    r.Location.DisplayName,
			ApplyURL:    r.RedirectURL,
			JobType:     adzunaJobType(r),
			Remote:      DetectRemote(r.Title + " " + r.Description),
			PostedAt:    parseISOTime(r.Created),
			Raw:         raw,
		}
		salaryMin, salaryMax := r.SalaryMin, r.SalaryMax
		if salaryMin > 0 && salaryMax > 0 && salaryMin > salaryMax {
			salaryMin, salaryMax = salaryMax, salaryMin
		}
		if salaryMin > 0 {
			v := int(salaryMin)
			p.SalaryMin = &v
		}
		if salaryMax > 0 {
			v := int(salaryMax)
			p.SalaryMax = &v
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func adzunaJobType(r adzunaResult) string {
	if r.ContractTime == "part_time" {
		return TypePartTime
	}
	return DetectJobType(r.Title)
}
