package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MinSimilarityThreshold != 0.3 {
		t.Fatalf("expected default threshold 0.3, got %f", cfg.MinSimilarityThreshold)
	}
	if cfg.MaxJobsPerRequest != 50 {
		t.Fatalf("expected default max jobs 50, got %d", cfg.MaxJobsPerRequest)
	}
	if cfg.CacheTTL.Hours() != 24 {
		t.Fatalf("expected default TTL 24h, got %s", cfg.CacheTTL)
	}
	if len(cfg.CompanySlugs) == 0 {
		t.Fatalf("expected default company slugs")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("MIN_SIMILARITY_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range threshold")
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("CACHE_TTL_HOURS", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric hours")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" stripe, databricks ,,cloudflare ")
	if len(got) != 3 || got[0] != "stripe" || got[2] != "cloudflare" {
		t.Fatalf("unexpected slugs %v", got)
	}
}
