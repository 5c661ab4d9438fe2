package main

import (
	"context"
	"fmt"

	"github.com/bilgisen/newswire/internal/archive"
	"github.com/bilgisen/newswire/internal/cache"
	"github.com/bilgisen/newswire/internal/config"
	"github.com/bilgisen/newswire/internal/feed"
	"github.com/bilgisen/newswire/internal/ingest"
	"github.com/bilgisen/newswire/internal/logger"
	"github.com/bilgisen/newswire/internal/storage"
)

// components are the long-lived parts shared by the commands.
type components struct {
	store        storage.Store
	redis        cache.RedisInterface
	orchestrator *ingest.Orchestrator
}

func (c *components) Close() {
	log := logger.Get()
	if c.redis != nil {
		log.Info().Msg("Closing Redis client...")
		if err := c.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}
	if c.store != nil {
		c.store.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.InMemory() {
		logger.Get().Warn().Msg("Using in-memory store, data is lost on exit")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	log := logger.Get()
	c := &components{}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.store = store

	var locker ingest.Locker
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		c.redis = redisClient
		locker = redisClient
	} else {
		log.Info().Msg("REDIS_URL not set, using in-process cache")
		c.redis = cache.NewMockRedisClient()
	}

	resolver := feed.NewResolver(cfg.RedirectMaxHops, cfg.RedirectTimeout, *log).
		WithCache(c.redis, cfg.CacheTTL)

	fetcher := feed.NewFetcher(feed.FetcherConfig{
		BaseURL:    cfg.ProviderBaseURL,
		APIKey:     cfg.ProviderAPIKey,
		APIHost:    cfg.ProviderAPIHost,
		LangRegion: cfg.ProviderLangRegion,
		Timeout:    cfg.ProviderTimeout,
		RetryCount: cfg.ProviderRetryCount,
	}, *log)

	processor := feed.NewProcessor(fetcher, feed.NewParser(), resolver, *log)
	if cfg.ArchiveEnabled() {
		archiver, err := archive.NewR2Archiver(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize R2 archive: %w", err)
		}
		processor.WithArchiver(archiver)
		log.Info().Str("bucket", cfg.R2Bucket).Msg("Archiving raw payloads to R2")
	}

	c.orchestrator = ingest.NewOrchestrator(store, processor, ingest.Options{
		Cooldown: cfg.IngestCooldown,
		LockTTL:  cfg.LockTTL,
	}, *log).WithPacer(ingest.NewRatePacer(cfg.CategoryDelay))
	if locker != nil {
		c.orchestrator.WithLocker(locker)
	}

	return c, nil
}
