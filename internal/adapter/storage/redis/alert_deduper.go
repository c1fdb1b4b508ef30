package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// AlertDeduper implements ports.AlertDeduper using Redis SET NX. A merchant
// gets at most one low-balance alert per TTL window.
type AlertDeduper struct {
	client *goredis.Client
	prefix string
}

// NewAlertDeduper creates a new Redis-backed alert deduper.
func NewAlertDeduper(client *goredis.Client) *AlertDeduper {
	return &AlertDeduper{
		client: client,
		prefix: "lowbalance:",
	}
}

// ShouldAlert atomically claims the merchant's alert slot for the window.
// Returns true if this caller claimed it, false if an alert already went out.
func (d *AlertDeduper) ShouldAlert(ctx context.Context, merchantID uuid.UUID, ttl time.Duration) (bool, error) {
	key := d.prefix + merchantID.String()
	result, err := d.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, an alert was sent within the window
			return false, nil
		}
		return false, fmt.Errorf("redis alert dedupe: %w", err)
	}
	return result == "OK", nil
}
