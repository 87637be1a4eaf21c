package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-quality/internal/api"
	"github.com/ignite/crm-quality/internal/cache"
	"github.com/ignite/crm-quality/internal/config"
	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/distlock"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/pkg/retry"
	"github.com/ignite/crm-quality/internal/quality"
	"github.com/ignite/crm-quality/internal/repository/postgres"
	"github.com/ignite/crm-quality/internal/tableview"
	"github.com/ignite/crm-quality/internal/worker"
)

const snapshotLockKey = "quality-snapshot"

// checkPortAvailable verifies the port can be bound before any expensive
// initialization.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

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

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 4)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		// the table reports base_fetch_failed until the database is back
		logger.Warn("database ping failed", "host", extractHost(cfg.Database.URL), "error", err)
	} else {
		logger.Info("database connected", "host", extractHost(cfg.Database.URL))
	}
	pingCancel()

	redisClient := connectRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	catalog, err := quality.CatalogByName(cfg.Engine.Catalog)
	if err != nil {
		log.Fatalf("Invalid catalog: %v", err)
	}

	var activity customers.ActivitySource = postgres.NewActivityRepo(db)
	var balances customers.BalanceSource = postgres.NewReceivableRepo(db)
	var snapshots *cache.SnapshotStore
	if redisClient != nil {
		lookups := cache.NewLookupCache(redisClient, activity, balances, cfg.Redis.CacheTTL())
		activity, balances = lookups, lookups
		snapshots = cache.NewSnapshotStore(redisClient, cache.DefaultHistoryLength)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Engine.Retries()
	source := customers.RetrySource{Source: postgres.NewCustomerSource(db, cfg.Engine.QueryStrategy), Policy: policy}
	composer := customers.NewComposer(source, activity, balances, customers.Config{
		FanOut:        cfg.Engine.FanOut,
		LookupTimeout: cfg.Engine.LookupTimeout(),
		Location:      cfg.Engine.Location(),
		Catalog:       catalog,
	})
	table := tableview.NewState(composer, domain.CustomerFilter{}, cfg.Engine.PageSize)
	aggregator := quality.NewAggregator(catalog, quality.Options{
		TopMissingLimit: cfg.Engine.TopMissingLimit,
		AlertLimit:      cfg.Engine.AlertLimit,
	})

	var snapshotWorker *worker.QualitySnapshotWorker
	if cfg.Snapshot.Enabled {
		if snapshots == nil {
			logger.Warn("snapshot worker needs redis, disabled")
		} else {
			lock := distlock.NewLock(redisClient, db, snapshotLockKey, cfg.Snapshot.LockTTL())
			snapshotWorker = worker.NewQualitySnapshotWorker(source, aggregator, snapshots, lock, worker.SnapshotConfig{
				Interval:    cfg.Snapshot.Interval(),
				TrendWindow: cfg.Snapshot.TrendWindow(),
			})
			snapshotWorker.Start()
		}
	}

	var snapshotReader api.SnapshotReader
	if snapshots != nil {
		snapshotReader = snapshots
	}
	router := api.SetupRoutes(
		api.NewHealthChecker(db, redisClient, table),
		nil,
		api.NewCustomerAPI(table, source, catalog),
		api.NewQualityAPI(aggregator, table, snapshotReader, api.QualityConfig{
			MaxSnapshotAge: 2 * cfg.Snapshot.Interval(),
			TrendWindow:    cfg.Snapshot.TrendWindow(),
		}),
	)
	server := api.NewServer(router)

	// Warm the table in the background; requests before it lands load on demand.
	go func() {
		if err := table.Refresh(ctx); err != nil {
			logger.Warn("initial table load failed", "error", err)
		}
	}()

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("starting server", "addr", addr, "catalog", catalog.Name(), "strategy", cfg.Engine.QueryStrategy)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	cancel()
	if snapshotWorker != nil {
		snapshotWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is disabled or unreachable. The lookup
// cache and snapshots are then skipped and locks fall back to Postgres.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		logger.Info("redis not configured, lookups go straight to postgres")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without it", "addr", cfg.Addr, "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.Addr)
	return client
}
