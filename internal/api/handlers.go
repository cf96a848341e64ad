package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/baxromumarov/job-finder/internal/core"
	"github.com/baxromumarov/job-finder/internal/observability"
	"github.com/baxromumarov/job-finder/internal/store"
)

type LiveJobsRequest struct {
	ResumeText string `json:"resume_text"`
	ResumeID   string `json:"resume_id"`
	Location   string `json:"location"`
	RemoteOnly bool   `json:"remote_only"`
	JobType    string `json:"job_type"`
	MinSalary  int    `json:"min_salary"`
	Limit      int    `json:"limit"`
	Debug      bool   `json:"debug"`
}

func (s *Server) handleLiveJobs(w http.ResponseWriter, r *http.Request) {
	var req LiveJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ResumeText == "" && req.ResumeID == "" {
		respondError(w, http.StatusBadRequest, "resume_text or resume_id is required")
		return
	}

	resp, err := s.matcher.FindLive(r.Context(), core.Request{
		ResumeText: req.ResumeText,
		ResumeID:   req.ResumeID,
		Location:   req.Location,
		RemoteOnly: req.RemoteOnly,
		JobType:    req.JobType,
		MinSalary:  req.MinSalary,
		Limit:      req.Limit,
		Debug:      req.Debug,
	})
	if err != nil {
		respondMatchError(w, err)
		return
	}

	if resp.Jobs == nil {
		resp.Jobs = []core.MatchResult{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCachedJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	minSalary := 0
	if v := q.Get("min_salary"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			minSalary = parsed
		}
	}

	resp, err := s.matcher.FindCached(r.Context(), core.Request{
		ResumeText: q.Get("resume_text"),
		ResumeID:   q.Get("resume_id"),
		Location:   q.Get("location"),
		RemoteOnly: q.Get("remote") == "true",
		JobType:    q.Get("job_type"),
		MinSalary:  minSalary,
		Limit:      limit,
		Debug:      q.Get("debug") == "true",
	})
	if err != nil {
		respondMatchError(w, err)
		return
	}

	if resp.Jobs == nil {
		resp.Jobs = []core.MatchResult{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// The run outlives this request, so it gets a detached context.
	err := s.refresher.TriggerAsync(context.WithoutCancel(r.Context()))
	if errors.Is(err, core.ErrRefreshRunning) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "skipped",
			"reason": "previous run active",
		})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cacheStats, err := s.store.Stats(r.Context(), s.cfg.CacheTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch stats: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cache":   cacheStats,
		"runtime": observability.Snapshot(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrResumeProfile):
		respondError(w, http.StatusBadRequest, "could not profile resume")
	case errors.Is(err, core.ErrNoResults):
		respondError(w, http.StatusServiceUnavailable, "no results available")
	case errors.Is(err, store.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
	default:
		respondError(w, http.StatusInternalServerError, "Failed to match jobs: "+err.Error())
	}
}
