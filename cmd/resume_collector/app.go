package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/collector"
	"github.com/recruit-ops/resume-collector/internal/config"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/llm"
	"github.com/recruit-ops/resume-collector/internal/logging"
	"github.com/recruit-ops/resume-collector/internal/review"
)

// app holds the services shared by the subcommands.
type app struct {
	cfg    *config.Config
	logs   *logging.Ring
	logger *zap.Logger
	db     *db.DB
	files  *artifacts.Store
	ai     llm.Client // nil without an API key
	redis  *redis.Client
}

// loadConfig resolves the effective configuration for the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp connects everything a command needs. Close must be called.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("config error: DATABASE_URL is required")
	}

	a := &app{cfg: cfg, logs: logging.NewRing(logging.DefaultRingSize)}
	logger, err := logging.New(cfg.Env, a.logs)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	a.db, err = db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a.files, err = artifacts.NewStore(cfg.Storage.PDFDir, cfg.Storage.MarkdownDir, cfg.Server.PublicBaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	gemini, err := llm.NewGeminiClient(ctx, llm.ConfigForModel(cfg.Gemini.Model), cfg.Gemini.APIKey)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		a.logger.Warn("GEMINI_API_KEY not set, AI extraction and review are disabled")
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.ai = gemini
	}

	if cfg.Redis.URL != "" {
		a.redis, err = collector.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.logger.Info("using redis run lock")
	}
	return a, nil
}

// collector builds the orchestrator, with Redis coordination when configured.
func (a *app) collector() *collector.Orchestrator {
	var (
		lock      collector.Locker
		summaries collector.SummaryStore
	)
	if a.redis != nil {
		lock = collector.NewRedisLock(a.redis, collector.DefaultLockTTL)
		summaries = collector.NewRedisSummaries(a.redis)
	}
	return collector.NewFromConfig(a.cfg, a.db, a.files, a.ai, lock, summaries, a.logger)
}

func (a *app) reviewer() *review.Service {
	return review.NewService(a.db, a.files, a.ai, a.logger)
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.ai != nil {
		_ = a.ai.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
