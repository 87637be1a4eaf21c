package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-quality/internal/cache"
	"github.com/ignite/crm-quality/internal/calendar"
	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/distlock"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/quality"
)

// ============================================================================
// QUALITY SNAPSHOT WORKER
// ============================================================================
// Periodically scores the whole customer population and stores the result.
// - One replica computes per interval (distributed lock)
// - Metrics, alerts, trend and the incomplete ranking go into one snapshot
// - The API serves the snapshot while it is fresh

// Worker defaults.
const (
	DefaultSnapshotInterval = 10 * time.Minute
	DefaultRunTimeout       = 5 * time.Minute
)

// SnapshotSink persists computed snapshots. *cache.SnapshotStore implements it.
type SnapshotSink interface {
	Save(ctx context.Context, snap cache.Snapshot) error
}

// SnapshotConfig tunes a QualitySnapshotWorker. Zero values take defaults.
type SnapshotConfig struct {
	Interval    time.Duration
	RunTimeout  time.Duration
	TrendWindow time.Duration
	Clock       calendar.Clock
}

// QualitySnapshotWorker computes population quality snapshots on a ticker.
type QualitySnapshotWorker struct {
	source     customers.CustomerSource
	aggregator *quality.Aggregator
	sink       SnapshotSink
	lock       distlock.Lock
	cfg        SnapshotConfig

	// State
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runMu   sync.Mutex
}

// NewQualitySnapshotWorker creates a worker. lock may be nil for a single
// replica deployment.
func NewQualitySnapshotWorker(source customers.CustomerSource, aggregator *quality.Aggregator, sink SnapshotSink, lock distlock.Lock, cfg SnapshotConfig) *QualitySnapshotWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSnapshotInterval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = quality.DefaultTrendWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{}
	}
	return &QualitySnapshotWorker{
		source:     source,
		aggregator: aggregator,
		sink:       sink,
		lock:       lock,
		cfg:        cfg,
	}
}

// Start runs one snapshot right away and then one per interval.
func (w *QualitySnapshotWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())

	logger.Info("quality snapshot worker starting", "interval", w.cfg.Interval.String())

	w.wg.Add(1)
	go w.runLoop()
}

// Stop cancels an in-flight run and waits for the loop to exit.
func (w *QualitySnapshotWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logger.Info("quality snapshot worker stopped")
}

func (w *QualitySnapshotWorker) runLoop() {
	defer w.wg.Done()

	w.tick()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *QualitySnapshotWorker) tick() {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.RunTimeout)
	defer cancel()

	if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, distlock.ErrNotAcquired) {
		logger.Error("quality snapshot failed", "error", err)
	}
}

// RunOnce computes and stores one snapshot. It returns
// distlock.ErrNotAcquired when another replica holds the job lock.
func (w *QualitySnapshotWorker) RunOnce(ctx context.Context) (*cache.Snapshot, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.lock == nil {
		return w.compute(ctx)
	}

	var snap *cache.Snapshot
	err := distlock.Run(ctx, w.lock, func(ctx context.Context) error {
		var err error
		snap, err = w.compute(ctx)
		return err
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		logger.Debug("quality snapshot skipped, lock held elsewhere")
	}
	return snap, err
}

func (w *QualitySnapshotWorker) compute(ctx context.Context) (*cache.Snapshot, error) {
	start := w.cfg.Clock.Now()

	records, err := w.source.FetchCustomers(ctx, domain.CustomerFilter{})
	if err != nil {
		return nil, &customers.FetchError{Op: "snapshot fetch customers", Err: err}
	}

	metrics := w.aggregator.Aggregate(records)
	snap := cache.Snapshot{
		ID:         uuid.New().String(),
		Catalog:    w.aggregator.Catalog().Name(),
		TakenAt:    start,
		Metrics:    metrics,
		Alerts:     w.aggregator.Alerts(metrics),
		Trend:      w.aggregator.QualityTrend(records, start, w.cfg.TrendWindow),
		Incomplete: w.aggregator.RankIncomplete(records),
	}
	snap.DurationMS = w.cfg.Clock.Now().Sub(start).Milliseconds()

	if err := w.sink.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	logger.Info("quality snapshot stored",
		"snapshot_id", snap.ID,
		"customers", metrics.TotalCustomers,
		"average", metrics.AverageCompleteness,
		"alerts", len(snap.Alerts),
		"duration_ms", snap.DurationMS)
	return &snap, nil
}
