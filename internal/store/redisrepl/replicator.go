package redisrepl

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fleetdesk.org/internal/store"
)

const keyPrefix = "fleetdesk:"

// Replicator mirrors store snapshots into Redis, one string value per
// logical key. Suited for a dashboard session shared across devices where a
// full document store is overkill.
type Replicator struct {
	client *redis.Client
}

var _ store.Replicator = (*Replicator)(nil)

// Open connects and pings the Redis backend.
func Open(ctx context.Context, addr, password string) (*Replicator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Replicator{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Replicator { return &Replicator{client: client} }

func (r *Replicator) Close() error { return r.client.Close() }

func (r *Replicator) TrySync(ctx context.Context, key string, snapshot []byte) error {
	return r.client.Set(ctx, keyPrefix+key, snapshot, 0).Err()
}
