package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/it-spirit/spiritsearch/assistant"
	"github.com/it-spirit/spiritsearch/cache"
	"github.com/it-spirit/spiritsearch/common/httpx"
	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/embedding"
	"github.com/it-spirit/spiritsearch/enrich"
	"github.com/it-spirit/spiritsearch/feedback"
	"github.com/it-spirit/spiritsearch/format"
	"github.com/it-spirit/spiritsearch/fusion"
	"github.com/it-spirit/spiritsearch/llm"
	"github.com/it-spirit/spiritsearch/orchestrator"
	"github.com/it-spirit/spiritsearch/registry"
	"github.com/it-spirit/spiritsearch/search"
	"github.com/it-spirit/spiritsearch/server"
	"github.com/it-spirit/spiritsearch/vectordb"
)

func main() {
	if err := run(); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevelByName(lvl)
	}

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return err
	}

	llmProvider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	embedder, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		return err
	}
	store, err := vectordb.NewProvider(cfg.VectorDB)
	if err != nil {
		return err
	}
	defer store.Close()

	// Cache layers, both optional.
	var rdb *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warnf("redis unreachable, volatile cache disabled: %v", err)
			rdb = nil
		}
		cancel()
		if rdb != nil {
			defer rdb.Close()
		}
	}
	var cacheStore *cache.Store
	var feedbackStore *feedback.Store
	if cfg.Cache.DatabasePath != "" {
		db, err := sql.Open("sqlite", cfg.Cache.DatabasePath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if cacheStore, err = cache.NewStore(db); err != nil {
			return err
		}
		if feedbackStore, err = feedback.NewStore(db); err != nil {
			return err
		}
	}

	hc := httpx.NewFromConfig(cfg.HTTP)
	assistants := assistant.New(cfg.Assistants, hc)

	orch := &orchestrator.Orchestrator{
		Enricher:  enrich.New(llmProvider, reg, cfg.Search),
		Engine:    search.NewEngine(store, embedder, cfg.VectorDB),
		Cache:     cache.New(cfg.Cache, rdb, cacheStore),
		Formatter: format.New(llmProvider),
		Fusion:    fusion.NewEngine(assistants, llmProvider, cfg.Assistants),
		Timeouts:  cfg.Timeouts,
	}

	srv := server.New(cfg.Server, orch, feedbackStore)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		logger.Infof("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	return srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
}
