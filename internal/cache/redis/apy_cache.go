package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/extralife/marketd/internal/domain"
)

// ApyCache implements domain.ApyCache using Redis hashes. Each chain's rate
// is stored at key "apy:{chain}" with fields "apy" and "ts" (Unix nanosecond
// timestamp), expiring after the caller's TTL so a dead oracle eventually
// falls back to the configured default rate.
type ApyCache struct {
	rdb *redis.Client
}

// NewApyCache creates an ApyCache backed by the given Client.
func NewApyCache(c *Client) *ApyCache {
	return &ApyCache{rdb: c.Underlying()}
}

func apyKey(chain string) string {
	return "apy:" + chain
}

// SetAPY stores the latest observed rate for a chain.
func (ac *ApyCache) SetAPY(ctx context.Context, chain string, apyPercent decimal.Decimal, ttl time.Duration) error {
	key := apyKey(chain)
	fields := map[string]interface{}{
		"apy": apyPercent.String(),
		"ts":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	pipe := ac.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set apy %s: %w", chain, err)
	}
	return nil
}

// GetAPY retrieves the last observed rate for a chain. It returns
// domain.ErrNotFound when no rate has been stored or it has expired.
func (ac *ApyCache) GetAPY(ctx context.Context, chain string) (decimal.Decimal, error) {
	val, err := ac.rdb.HGet(ctx, apyKey(chain), "apy").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("redis: get apy %s: %w", chain, err)
	}

	apy, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: parse apy %s: %w", chain, err)
	}
	return apy, nil
}

// Compile-time interface check.
var _ domain.ApyCache = (*ApyCache)(nil)
