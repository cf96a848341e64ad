package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/baxromumarov/job-finder/internal/aggregate"
	"github.com/baxromumarov/job-finder/internal/api"
	"github.com/baxromumarov/job-finder/internal/config"
	"github.com/baxromumarov/job-finder/internal/core"
	"github.com/baxromumarov/job-finder/internal/embed"
	"github.com/baxromumarov/job-finder/internal/httpx"
	"github.com/baxromumarov/job-finder/internal/source"
	"github.com/baxromumarov/job-finder/internal/store"
	"github.com/baxromumarov/job-finder/internal/validate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dbStore, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	workDir, _ := os.Getwd()
	schemaPath := filepath.Join(workDir, "internal", "store", "schema.sql")
	if err := dbStore.RunMigrations(schemaPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, embedding cache is in-memory only", "error", err)
			rdb = nil
		}
	}

	embedCache, err := embed.NewCache(0, rdb)
	if err != nil {
		slog.Error("failed to init embedding cache", "error", err)
		os.Exit(1)
	}

	embedder, err := embed.NewClient(ctx, embed.Config{
		APIKey:   cfg.GenAIAPIKey,
		Project:  cfg.GenAIProject,
		Location: cfg.GenAILocation,
		Model:    cfg.EmbeddingModel,
	}, embedCache)
	if err != nil {
		slog.Error("failed to init embedding client", "error", err)
		os.Exit(1)
	}

	client := httpx.NewClient("job-finder-bot/1.0", 10*time.Second)
	connectors := []source.Connector{
		source.NewGreenhouseConnector(client, cfg.CompanySlugs),
		source.NewLeverConnector(client, cfg.CompanySlugs),
		source.NewAshbyConnector(client, cfg.CompanySlugs),
		source.NewSmartRecruitersConnector(client, cfg.CompanySlugs),
		source.NewAdzunaConnector(client, cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry),
		source.NewRemotiveConnector(client, "software-dev"),
		source.NewWWRConnector(client),
	}

	aggregator := aggregate.New(connectors, cfg.FetchParallelism)
	validator := validate.New(cfg.ValidateTimeout, cfg.ValidateParallel)
	resolver := core.NewHTTPResumeResolver(cfg.ResumeServiceURL)

	matcher := core.NewMatcher(cfg, dbStore, aggregator, embedder, validator, resolver)
	refresher := core.NewRefresher(cfg, dbStore, aggregator, embedder, validator)
	if err := refresher.Start(ctx); err != nil {
		slog.Error("failed to start refresher", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(cfg, dbStore, matcher, refresher)

	slog.Info("starting server", "port", cfg.Port, "sources", len(connectors), "embedding_model", embedder.Model())
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
