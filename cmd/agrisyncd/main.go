// Command agrisyncd runs the offline-first sync engine as a background
// daemon: it opens the local store, drains the offline queue on a schedule
// and serves reads through the cache strategy router.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agrilink/agrisync/internal/cache"
	"github.com/agrilink/agrisync/internal/config"
	"github.com/agrilink/agrisync/internal/db"
	"github.com/agrilink/agrisync/internal/logging"
	"github.com/agrilink/agrisync/internal/models"
	"github.com/agrilink/agrisync/internal/queue"
	"github.com/agrilink/agrisync/internal/status"
	"github.com/agrilink/agrisync/internal/syncer"
	"github.com/agrilink/agrisync/internal/trigger"
)

func main() {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := logging.Component("main")
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(cfg.LogLevel, cfg.LogConsole)
	log := logging.Component("main")
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting agrisyncd")

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := db.Migrate(database.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store := db.NewStore(database, cfg.QueueCap)
	defer store.Close()

	q := queue.New(store, queue.Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
	})

	router := cache.NewRouter(store, cache.NewHTTPClient(cfg.AttemptTimeout), cacheRules(cfg), cfg.CacheTTL)

	engine, err := syncer.New(store, q, router, syncer.Config{
		Concurrency:           cfg.Concurrency,
		AttemptTimeout:        cfg.AttemptTimeout,
		StaleAttemptThreshold: cfg.StaleAttemptThreshold,
		SyncedRetention:       cfg.SyncedRetention,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start sync engine")
	}
	defer engine.Close()

	if cfg.RemoteBaseURL != "" {
		deliverer := syncer.NewHTTPDeliverer(cfg.RemoteBaseURL, cache.NewHTTPClient(cfg.AttemptTimeout))
		for _, itemType := range models.AllItemTypes() {
			engine.RegisterDeliverer(itemType, deliverer)
		}
		log.Info().Str("remote", cfg.RemoteBaseURL).Msg("remote delivery enabled")
	} else {
		log.Warn().Msg("no remote URL configured, queued items will not be delivered")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr := trigger.New(func(ctx context.Context) error {
		_, err := engine.DrainOnce(ctx)
		return err
	}, cfg.SyncInterval)
	tr.Start(ctx)
	defer tr.Stop()
	tr.TriggerNow()

	go reportStatus(ctx, status.New(store), cfg.SyncInterval)
	go purgeCache(ctx, router)

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

// cacheRules converts configured rules to router rules.
func cacheRules(cfg *config.Config) []cache.Rule {
	rules := make([]cache.Rule, 0, len(cfg.CacheRules))
	for _, r := range cfg.CacheRules {
		rules = append(rules, cache.Rule{
			Pattern:  r.Pattern,
			Strategy: cache.Strategy(r.Strategy),
			Critical: r.Critical,
			Image:    r.Image,
			TTL:      r.TTL,
		})
	}
	return rules
}

// reportStatus logs a status snapshot periodically.
func reportStatus(ctx context.Context, reporter *status.Reporter, interval time.Duration) {
	log := logging.Component("status")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap, err := reporter.Snapshot()
			if err != nil {
				log.Error().Err(err).Msg("failed to compute status snapshot")
				continue
			}
			evt := log.Info().
				Int("pending", snap.PendingCount).
				Int("failed", snap.FailedCount).
				Int("synced", snap.SyncedCount).
				Int("conflicts", snap.ConflictCount).
				Int64("storage_bytes", snap.StorageBytes)
			if snap.LastSyncTime != nil {
				evt = evt.Time("last_sync", *snap.LastSyncTime)
			}
			evt.Msg("sync status")
		case <-ctx.Done():
			return
		}
	}
}

// purgeCache sweeps expired cache entries hourly.
func purgeCache(ctx context.Context, router *cache.Router) {
	log := logging.Component("cache-sweep")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := router.PurgeExpired(); err != nil {
				log.Error().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int64("count", n).Msg("purged expired cache entries")
			}
		case <-ctx.Done():
			return
		}
	}
}
