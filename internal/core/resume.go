package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrResumeProfile means no usable resume could be resolved for the
// request, neither inline text nor a fetchable resume id.
var ErrResumeProfile = errors.New("could not profile resume")

// ResumeResolver turns a stored resume id into resume text. The
// storage itself lives in a separate service.
type ResumeResolver interface {
	Resolve(ctx context.Context, resumeID string) (string, error)
}

// HTTPResumeResolver fetches resume text from the resume service's
// GET /resumes/{id} endpoint.
type HTTPResumeResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResumeResolver(baseURL string) *HTTPResumeResolver {
	return &HTTPResumeResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResumeResolver) Resolve(ctx context.Context, resumeID string) (string, error) {
	if r.baseURL == "" {
		return "", fmt.Errorf("resume service not configured")
	}

	u := r.baseURL + "/resumes/" + url.PathEscape(resumeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resume fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resume fetch failed: status %d", resp.StatusCode)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("resume decode failed: %w", err)
	}
	if strings.TrimSpace(body.Text) == "" {
		return "", fmt.Errorf("resume %s is empty", resumeID)
	}
	return body.Text, nil
}
