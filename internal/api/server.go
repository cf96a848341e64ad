package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/job-finder/internal/config"
	"github.com/baxromumarov/job-finder/internal/core"
	"github.com/baxromumarov/job-finder/internal/store"
)

type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	store     *store.Store
	matcher   *core.Matcher
	refresher *core.Refresher
}

func NewServer(cfg *config.Config, st *store.Store, matcher *core.Matcher, refresher *core.Refresher) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		store:     st,
		matcher:   matcher,
		refresher: refresher,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/jobs/live", s.handleLiveJobs)
	s.router.Get("/jobs/cached", s.handleCachedJobs)
	s.router.Post("/jobs/refresh", s.handleRefresh)
	s.router.Get("/stats", s.handleStats)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
