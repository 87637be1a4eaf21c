package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-quality/internal/cache"
	"github.com/ignite/crm-quality/internal/calendar"
	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/httputil"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/quality"
	"github.com/ignite/crm-quality/internal/tableview"
)

// Where a quality answer came from.
const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

// SnapshotReader reads stored snapshots. *cache.SnapshotStore implements it.
type SnapshotReader interface {
	Latest(ctx context.Context) (*cache.Snapshot, error)
	History(ctx context.Context, limit int) ([]cache.Snapshot, error)
}

// QualityResponse wraps every population quality answer.
type QualityResponse struct {
	Source     string    `json:"source"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
	Data       any       `json:"data"`
}

// QualityConfig tunes QualityAPI.
type QualityConfig struct {
	// MaxSnapshotAge is how old a snapshot may be and still be served.
	MaxSnapshotAge time.Duration
	TrendWindow    time.Duration
	Clock          calendar.Clock
}

// QualityAPI serves population metrics, alerts, trend and the incomplete
// ranking. It prefers a fresh snapshot and computes from the loaded table
// otherwise.
type QualityAPI struct {
	aggregator *quality.Aggregator
	table      *tableview.State
	snapshots  SnapshotReader
	cfg        QualityConfig
}

// NewQualityAPI creates the handler set. snapshots may be nil.
func NewQualityAPI(aggregator *quality.Aggregator, table *tableview.State, snapshots SnapshotReader, cfg QualityConfig) *QualityAPI {
	if cfg.MaxSnapshotAge <= 0 {
		cfg.MaxSnapshotAge = 20 * time.Minute
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = quality.DefaultTrendWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{}
	}
	return &QualityAPI{aggregator: aggregator, table: table, snapshots: snapshots, cfg: cfg}
}

// RegisterRoutes registers quality routes under /quality.
func (api *QualityAPI) RegisterRoutes(r chi.Router) {
	r.Route("/quality", func(r chi.Router) {
		r.Get("/metrics", api.HandleGetMetrics)
		r.Get("/alerts", api.HandleGetAlerts)
		r.Get("/trend", api.HandleGetTrend)
		r.Get("/incomplete", api.HandleGetIncomplete)
		r.Get("/snapshots", api.HandleListSnapshots)
	})
}

// HandleGetMetrics GET /api/quality/metrics
func (api *QualityAPI) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	api.serve(w, r,
		func(s *cache.Snapshot) any { return s.Metrics },
		func(records []domain.Customer) any { return api.aggregator.Aggregate(records) })
}

// HandleGetAlerts GET /api/quality/alerts
func (api *QualityAPI) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	api.serve(w, r,
		func(s *cache.Snapshot) any { return s.Alerts },
		func(records []domain.Customer) any {
			return api.aggregator.Alerts(api.aggregator.Aggregate(records))
		})
}

// HandleGetTrend GET /api/quality/trend
func (api *QualityAPI) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	api.serve(w, r,
		func(s *cache.Snapshot) any { return s.Trend },
		func(records []domain.Customer) any {
			return api.aggregator.QualityTrend(records, api.cfg.Clock.Now(), api.cfg.TrendWindow)
		})
}

// HandleGetIncomplete GET /api/quality/incomplete
func (api *QualityAPI) HandleGetIncomplete(w http.ResponseWriter, r *http.Request) {
	api.serve(w, r,
		func(s *cache.Snapshot) any { return s.Incomplete },
		func(records []domain.Customer) any { return api.aggregator.RankIncomplete(records) })
}

// HandleListSnapshots returns stored snapshots, newest first.
// GET /api/quality/snapshots?limit=N
func (api *QualityAPI) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if api.snapshots == nil {
		httputil.OK(w, []cache.Snapshot{})
		return
	}
	history, err := api.snapshots.History(r.Context(), httputil.QueryInt(r, "limit", 10))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, history)
}

func (api *QualityAPI) serve(w http.ResponseWriter, r *http.Request, fromSnapshot func(*cache.Snapshot) any, live func([]domain.Customer) any) {
	if snap := api.freshSnapshot(r.Context()); snap != nil {
		httputil.OK(w, QualityResponse{
			Source:     SourceSnapshot,
			SnapshotID: snap.ID,
			ComputedAt: snap.TakenAt,
			Data:       fromSnapshot(snap),
		})
		return
	}

	records, err := api.loadedRecords(r.Context())
	if err != nil {
		writeTableError(w, err)
		return
	}
	httputil.OK(w, QualityResponse{
		Source:     SourceLive,
		ComputedAt: api.cfg.Clock.Now(),
		Data:       live(records),
	})
}

// freshSnapshot returns the latest snapshot when it is recent enough and
// scored with the same catalog.
func (api *QualityAPI) freshSnapshot(ctx context.Context) *cache.Snapshot {
	if api.snapshots == nil {
		return nil
	}
	snap, err := api.snapshots.Latest(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrSnapshotMissing) {
			logger.Warn("snapshot read failed, computing live", "error", err)
		}
		return nil
	}
	if snap.Catalog != api.aggregator.Catalog().Name() || !snap.Fresh(api.cfg.Clock.Now(), api.cfg.MaxSnapshotAge) {
		return nil
	}
	return snap
}

func (api *QualityAPI) loadedRecords(ctx context.Context) ([]domain.Customer, error) {
	if status, _ := api.table.Status(); status == tableview.StatusIdle {
		if err := api.table.Refresh(ctx); err != nil && !tableview.IsBaseFetchFailure(err) {
			logger.Warn("initial table load incomplete", "error", err)
		}
	}
	rows := api.table.Loaded()
	if len(rows) == 0 {
		if _, err := api.table.Status(); err != nil {
			return nil, err
		}
	}
	return customers.Records(rows), nil
}
