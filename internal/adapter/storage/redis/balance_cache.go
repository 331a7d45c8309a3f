package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// setIfNewer stores a snapshot only when its ledger sequence is higher than
// the cached one. The check and both writes run atomically server-side, which
// closes the window where a reader that computed its snapshot before a
// concurrent commit would overwrite the newer snapshot.
//
// KEYS[1] = snapshot key, KEYS[2] = sequence key
// ARGV[1] = sequence, ARGV[2] = snapshot JSON, ARGV[3] = TTL millis
var setIfNewer = goredis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
return 1
`)

// BalanceCache implements ports.BalanceCache using Redis. It is a read-side
// accelerator only: the ledger remains the source of truth. Both read and
// write paths refresh the snapshot through the sequence guard, so whichever
// caller saw the newest ledger entry wins.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a new Redis-backed balance snapshot cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

// Get retrieves the cached balance snapshot for an asset.
// Returns nil, nil if no snapshot is cached.
func (c *BalanceCache) Get(ctx context.Context, assetID uuid.UUID) (*domain.Balance, error) {
	val, err := c.client.Get(ctx, c.prefix+assetID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}
	b := &domain.Balance{}
	if err := json.Unmarshal(val, b); err != nil {
		return nil, fmt.Errorf("unmarshal cached balance: %w", err)
	}
	return b, nil
}

// Set stores a balance snapshot taken at the given ledger sequence with TTL.
// A snapshot at or below the cached sequence is silently discarded.
func (c *BalanceCache) Set(ctx context.Context, assetID uuid.UUID, balance domain.Balance, sequence int64, ttl time.Duration) error {
	val, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("marshal balance: %w", err)
	}
	key := c.prefix + assetID.String()
	seqKey := c.prefix + "seq:" + assetID.String()
	if err := setIfNewer.Run(ctx, c.client, []string{key, seqKey}, sequence, val, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}
