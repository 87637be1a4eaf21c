package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-quality/internal/cache"
	"github.com/ignite/crm-quality/internal/config"
	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/pkg/distlock"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/pkg/retry"
	"github.com/ignite/crm-quality/internal/quality"
	"github.com/ignite/crm-quality/internal/repository/postgres"
	"github.com/ignite/crm-quality/internal/worker"
)

// Standalone snapshot worker. Several replicas may run; the job lock keeps
// one computation per interval.
func main() {
	configPath := os.Getenv("CRMQ_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancel()
	logger.Info("worker connected to database")

	if !cfg.Redis.Enabled {
		log.Fatal("the snapshot worker stores results in redis; set redis.enabled or REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()

	catalog, err := quality.CatalogByName(cfg.Engine.Catalog)
	if err != nil {
		log.Fatalf("Invalid catalog: %v", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Engine.Retries()
	source := customers.RetrySource{Source: postgres.NewCustomerSource(db, cfg.Engine.QueryStrategy), Policy: policy}

	aggregator := quality.NewAggregator(catalog, quality.Options{
		TopMissingLimit: cfg.Engine.TopMissingLimit,
		AlertLimit:      cfg.Engine.AlertLimit,
	})
	w := worker.NewQualitySnapshotWorker(source, aggregator,
		cache.NewSnapshotStore(client, cache.DefaultHistoryLength),
		distlock.NewLock(client, db, "quality-snapshot", cfg.Snapshot.LockTTL()),
		worker.SnapshotConfig{
			Interval:    cfg.Snapshot.Interval(),
			TrendWindow: cfg.Snapshot.TrendWindow(),
		})
	w.Start()
	logger.Info("snapshot worker running", "interval", cfg.Snapshot.Interval().String(), "catalog", catalog.Name())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	w.Stop()
	logger.Info("worker stopped")
}
