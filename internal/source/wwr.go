package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-finder/internal/httpx"
)

// WWRConnector scrapes the We Work Remotely programming category. The
// listing page exposes no posting dates, so PostedAt stays zero and the
// dedup key falls back to title|company|location.
type WWRConnector struct {
	client *httpx.Client
}

func NewWWRConnector(client *httpx.Client) *WWRConnector {
	return &WWRConnector{client: client}
}

func (w *WWRConnector) Name() string { return "weworkremotely" }

func (w *WWRConnector) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	url := "https://weworkremotely.com/categories/remote-programming-jobs"
	resp, err := w.client.Get(ctx, url)
	if err != nil {
		if httpx.IsThrottled(err) {
			return nil, fmt.Errorf("weworkremotely: %w", ErrUnavailable)
		}
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weworkremotely parse failed: %w", err)
	}

	var postings []Posting
	doc.Find("section.jobs article ul li a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		title := strings.TrimSpace(s.Find("span.title").Text())
		company := strings.TrimSpace(s.Find("span.company").Text())
		if title == "" || company == "" {
			return
		}

		jobURL := strings.TrimPrefix(href, "//")
		if !strings.HasPrefix(jobURL, "http") {
			jobURL = "https://weworkremotely.com" + href
		}

		postings = append(postings, Posting{
			Source:      "weworkremotely",
			SourceUID:   strings.Trim(href, "/"),
			Title:       title,
			Company:     company,
			Description: title + " at " + company,
			Location:    "Remote",
			ApplyURL:    jobURL,
			JobType:     DetectJobType(title),
			Remote:      true,
		})
	})

	return postings, nil
}
