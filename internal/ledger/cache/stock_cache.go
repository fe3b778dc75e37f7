package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/pkg/logger"
)

// DefaultTTL bounds staleness on the read side; writes invalidate eagerly,
// the TTL only covers missed invalidations.
const DefaultTTL = 30 * time.Second

// StockCache is a Redis read-through cache for current stock snapshots.
// It is strictly a read-side optimization: the database row stays the
// authority and every committed change invalidates the cached snapshot.
// A nil cache (Redis not configured) degrades to pass-through.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StockCache{client: client, ttl: ttl}
}

func key(productID string) string {
	return fmt.Sprintf("stock:%s", productID)
}

// Get returns the cached snapshot, or nil on a miss
func (c *StockCache) Get(ctx context.Context, productID string) (*domain.ProductStock, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, key(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var stock domain.ProductStock
	if err := json.Unmarshal(data, &stock); err != nil {
		// Treat a corrupt snapshot as a miss and drop it
		logger.Warn(ctx).Err(err).Str("product_id", productID).Msg("Dropping corrupt stock snapshot")
		c.client.Del(ctx, key(productID))
		return nil, nil
	}
	return &stock, nil
}

// Set stores a snapshot with the configured TTL
func (c *StockCache) Set(ctx context.Context, stock *domain.ProductStock) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(stock)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, key(stock.ProductID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot after a committed change
func (c *StockCache) Invalidate(ctx context.Context, productID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, key(productID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
