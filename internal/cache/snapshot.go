package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-quality/internal/quality"
)

const (
	snapshotLatestKey  = "crmq:quality:latest"
	snapshotHistoryKey = "crmq:quality:history"

	// DefaultHistoryLength caps the stored snapshot history.
	DefaultHistoryLength = 48
)

// Snapshot is one periodic population quality computation.
type Snapshot struct {
	ID         string                      `json:"id"`
	Catalog    string                      `json:"catalog"`
	TakenAt    time.Time                   `json:"taken_at"`
	DurationMS int64                       `json:"duration_ms"`
	Metrics    quality.Metrics             `json:"metrics"`
	Alerts     []quality.Alert             `json:"alerts"`
	Trend      quality.Trend               `json:"trend"`
	Incomplete []quality.IncompleteProfile `json:"incomplete"`
}

// Fresh reports whether s was taken within maxAge of now.
func (s *Snapshot) Fresh(now time.Time, maxAge time.Duration) bool {
	return s != nil && now.Sub(s.TakenAt) <= maxAge
}

// SnapshotStore keeps the latest snapshot plus a bounded history in Redis.
type SnapshotStore struct {
	client     *redis.Client
	historyLen int64
}

// NewSnapshotStore creates a store. A non-positive historyLen uses
// DefaultHistoryLength.
func NewSnapshotStore(client *redis.Client, historyLen int) *SnapshotStore {
	if historyLen <= 0 {
		historyLen = DefaultHistoryLength
	}
	return &SnapshotStore{client: client, historyLen: int64(historyLen)}
}

// Save stores s as the latest snapshot and prepends it to the history.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotLatestKey, data, 0)
	pipe.LPush(ctx, snapshotHistoryKey, data)
	pipe.LTrim(ctx, snapshotHistoryKey, 0, s.historyLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot or ErrSnapshotMissing.
func (s *SnapshotStore) Latest(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotLatestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// History returns up to limit snapshots, newest first.
func (s *SnapshotStore) History(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 || int64(limit) > s.historyLen {
		limit = int(s.historyLen)
	}
	items, err := s.client.LRange(ctx, snapshotHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}
	out := make([]Snapshot, 0, len(items))
	for _, item := range items {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
