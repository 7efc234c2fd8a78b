package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/extralife/marketd/internal/domain"
)

// ProcessedSet implements domain.ProcessedSet using SETNX with a TTL. A
// restarted chain poller re-reads recent logs; this keeps replayed events
// from being applied twice.
type ProcessedSet struct {
	rdb *redis.Client
}

// NewProcessedSet creates a ProcessedSet backed by the given Client.
func NewProcessedSet(c *Client) *ProcessedSet {
	return &ProcessedSet{rdb: c.Underlying()}
}

func processedKey(eventID string) string {
	return "processed:" + eventID
}

// MarkProcessed records an event id and reports whether this call was the
// first to see it.
func (ps *ProcessedSet) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	first, err := ps.rdb.SetNX(ctx, processedKey(eventID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark processed %s: %w", eventID, err)
	}
	return first, nil
}

// Compile-time interface check.
var _ domain.ProcessedSet = (*ProcessedSet)(nil)
