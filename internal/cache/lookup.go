package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/pkg/logger"
)

// DefaultLookupTTL is how long a cached lookup stays valid.
const DefaultLookupTTL = 60 * time.Second

const (
	lastContactPrefix = "crmq:last_contact:"
	openBalancePrefix = "crmq:open_balance:"
	// noContact marks a cached "never contacted" answer.
	noContact = "none"
)

// LookupCache is a read-through cache over the ancillary sources. It
// implements customers.ActivitySource and customers.BalanceSource.
type LookupCache struct {
	client   *redis.Client
	activity customers.ActivitySource
	balances customers.BalanceSource
	ttl      time.Duration
}

// NewLookupCache wraps activity and balances with a Redis cache.
func NewLookupCache(client *redis.Client, activity customers.ActivitySource, balances customers.BalanceSource, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = DefaultLookupTTL
	}
	return &LookupCache{client: client, activity: activity, balances: balances, ttl: ttl}
}

// LatestContactOrSale implements customers.ActivitySource.
func (c *LookupCache) LatestContactOrSale(ctx context.Context, customerID string) (*time.Time, error) {
	key := lastContactPrefix + customerID
	if v, ok := c.get(ctx, key); ok {
		if v == noContact {
			return nil, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &t, nil
		}
	}

	t, err := c.activity.LatestContactOrSale(ctx, customerID)
	if err != nil {
		return nil, err
	}
	v := noContact
	if t != nil {
		v = t.UTC().Format(time.RFC3339Nano)
	}
	c.set(ctx, key, v)
	return t, nil
}

// OpenBalance implements customers.BalanceSource.
func (c *LookupCache) OpenBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	key := openBalancePrefix + customerID
	if v, ok := c.get(ctx, key); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			return d, nil
		}
	}

	d, err := c.balances.OpenBalance(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	c.set(ctx, key, d.String())
	return d, nil
}

// Invalidate drops the cached lookups of the given customers.
func (c *LookupCache) Invalidate(ctx context.Context, customerIDs ...string) error {
	if len(customerIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(customerIDs))
	for _, id := range customerIDs {
		keys = append(keys, lastContactPrefix+id, openBalancePrefix+id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate lookups: %w", err)
	}
	return nil
}

func (c *LookupCache) get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug("lookup cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (c *LookupCache) set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.Debug("lookup cache write failed", "key", key, "error", err)
	}
}
