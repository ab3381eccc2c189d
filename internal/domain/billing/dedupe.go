package billing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutorhub/tutorhub-api/internal/pkg/database"
)

// Deduper remembers which provider events were already applied
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper keeps event ids in Redis for ttl. A nil client claims
// every event.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) Deduper {
	return &redisDeduper{client: client, ttl: ttl}
}

func (d *redisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return database.ClaimOnce(ctx, d.client, "billing:event:"+key, d.ttl)
}

func (d *redisDeduper) Release(ctx context.Context, key string) {
	database.ReleaseClaim(ctx, d.client, "billing:event:"+key)
}
