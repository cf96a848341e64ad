// Package config loads and validates environment variables at startup.
// Fail-fast: required variables missing means the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the job finder service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional second-tier embedding cache

	// Embedding provider. Either an API key (Gemini API backend) or a
	// project/location pair (Vertex backend). Both empty selects the
	// deterministic fallback embedder.
	GenAIAPIKey    string
	GenAIProject   string
	GenAILocation  string
	EmbeddingModel string

	AdzunaAppID  string
	AdzunaAppKey string

	ResumeServiceURL string

	MinSimilarityThreshold float64
	MaxJobsPerRequest      int
	CacheTTL               time.Duration
	CacheStaleness         time.Duration
	RefreshIntervalHours   int

	LiveFetchTimeout  time.Duration
	ValidateTimeout   time.Duration
	FetchParallelism  int
	EmbedBatchSize    int
	ValidateParallel  int
	CompanySlugs      []string
	AdzunaCountry     string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		Port:             envDefault("PORT", "8080"),
		DatabaseURL:      dbURL,
		RedisURL:         os.Getenv("REDIS_URL"),
		GenAIAPIKey:      os.Getenv("GENAI_API_KEY"),
		GenAIProject:     os.Getenv("GENAI_PROJECT"),
		GenAILocation:    envDefault("GENAI_LOCATION", "us-central1"),
		EmbeddingModel:   envDefault("EMBEDDING_MODEL", "text-embedding-004"),
		AdzunaAppID:      os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:     os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry:    envDefault("ADZUNA_COUNTRY", "us"),
		ResumeServiceURL: os.Getenv("RESUME_SERVICE_URL"),
		LiveFetchTimeout: 12 * time.Second,
		ValidateTimeout:  5 * time.Second,
		FetchParallelism: 8,
		EmbedBatchSize:   16,
		ValidateParallel: 10,
	}

	var err error
	if cfg.MinSimilarityThreshold, err = envFloat("MIN_SIMILARITY_THRESHOLD", 0.3); err != nil {
		return nil, err
	}
	if cfg.MinSimilarityThreshold < 0 || cfg.MinSimilarityThreshold > 1 {
		return nil, fmt.Errorf("MIN_SIMILARITY_THRESHOLD must be in [0,1]")
	}

	maxJobs, err := envInt("MAX_JOBS_PER_REQUEST", 50)
	if err != nil {
		return nil, err
	}
	cfg.MaxJobsPerRequest = maxJobs

	ttlHours, err := envInt("CACHE_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttlHours) * time.Hour

	staleMin, err := envInt("CACHE_STALENESS_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	cfg.CacheStaleness = time.Duration(staleMin) * time.Minute

	if cfg.RefreshIntervalHours, err = envInt("REFRESH_INTERVAL_HOURS", 6); err != nil {
		return nil, err
	}
	if cfg.RefreshIntervalHours < 1 {
		return nil, fmt.Errorf("REFRESH_INTERVAL_HOURS must be a positive integer")
	}

	cfg.CompanySlugs = splitList(envDefault("COMPANY_SLUGS", "stripe,databricks,cloudflare"))

	return cfg, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
