package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// BalanceCache implements ports.BalanceCache using Redis. Entries are
// invalidated on every wallet mutation, so a hit is at most one TTL stale.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a new Redis-backed balance cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

// Get retrieves a cached balance by merchant ID.
// Returns nil, nil on a cache miss.
func (c *BalanceCache) Get(ctx context.Context, merchantID uuid.UUID) (*domain.Balance, error) {
	val, err := c.client.Get(ctx, c.prefix+merchantID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}

	var balance domain.Balance
	if err := json.Unmarshal(val, &balance); err != nil {
		return nil, fmt.Errorf("redis balance unmarshal: %w", err)
	}
	return &balance, nil
}

// Set stores a balance with TTL.
func (c *BalanceCache) Set(ctx context.Context, merchantID uuid.UUID, balance domain.Balance, ttl time.Duration) error {
	val, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("redis balance marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+merchantID.String(), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Invalidate removes a merchant's cached balance.
func (c *BalanceCache) Invalidate(ctx context.Context, merchantID uuid.UUID) error {
	if err := c.client.Del(ctx, c.prefix+merchantID.String()).Err(); err != nil {
		return fmt.Errorf("redis balance del: %w", err)
	}
	return nil
}
