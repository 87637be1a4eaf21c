package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-quality/internal/pkg/httputil"
	"github.com/ignite/crm-quality/internal/tableview"
)

// Component statuses.
const (
	checkUp            = "up"
	checkDown          = "down"
	checkDegraded      = "degraded"
	checkNotConfigured = "not_configured"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker reports on Postgres, Redis and the customer table.
// Redis and the table may be nil.
type HealthChecker struct {
	db          Pinger
	redisClient *redis.Client
	table       *tableview.State
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, table *tableview.State) *HealthChecker {
	hc := &HealthChecker{redisClient: redisClient, table: table, startTime: time.Now()}
	if db != nil {
		hc.db = db
	}
	return hc
}

const healthVersion = "1.0.0"

// RegisterRoutes mounts GET /health.
func (hc *HealthChecker) RegisterRoutes(r chi.Router) {
	r.Get("/health", hc.HandleHealth)
}

// HandleHealth always answers 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, 3)
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, fn func(context.Context) ComponentCheck) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := fn(ctx)
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}()
	}
	run("database", hc.checkDatabase)
	run("redis", hc.checkRedis)
	run("customer_table", hc.checkTable)
	wg.Wait()

	return checks
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: checkDown, Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: checkDown, Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > time.Second {
		return ComponentCheck{Status: checkDegraded, Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: checkUp, Latency: latency.String(), Message: "connected"}
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: checkNotConfigured}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: checkDown, Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > 500*time.Millisecond {
		return ComponentCheck{Status: checkDegraded, Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: checkUp, Latency: latency.String(), Message: "connected"}
}

func (hc *HealthChecker) checkTable(_ context.Context) ComponentCheck {
	if hc.table == nil {
		return ComponentCheck{Status: checkNotConfigured}
	}
	status, err := hc.table.Status()
	switch status {
	case tableview.StatusReady:
		return ComponentCheck{Status: checkUp, Message: fmt.Sprintf("%d rows loaded", len(hc.table.Loaded()))}
	case tableview.StatusFailed:
		if hc.table.Loaded() != nil {
			return ComponentCheck{Status: checkDegraded, Message: fmt.Sprintf("serving stale rows: %v", err)}
		}
		return ComponentCheck{Status: checkDown, Message: fmt.Sprintf("refresh failed: %v", err)}
	default:
		return ComponentCheck{Status: checkUp, Message: string(status)}
	}
}

// determineOverallStatus is unhealthy when the database is down and degraded
// when any other component is down or slow.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if checks["database"].Status == checkDown {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == checkDown || c.Status == checkDegraded {
			return "degraded"
		}
	}
	return "healthy"
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
