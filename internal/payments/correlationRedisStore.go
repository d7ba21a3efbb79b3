package payments

import (
	"context"
	"errors"
	"fmt"
	"stk-relay/internal/payments/entities"
	"time"

	"github.com/redis/go-redis/v9"
)

const correlationKeyPrefix = "correlation:"

// CorrelationRedisStore keeps correlation statuses in Redis so several relay
// instances can share them. Each key expires ttl after its last write.
type CorrelationRedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCorrelationRedisStore(client *redis.Client, ttl time.Duration) *CorrelationRedisStore {
	return &CorrelationRedisStore{client: client, ttl: ttl}
}

func correlationKey(correlationID string) string {
	return correlationKeyPrefix + correlationID
}

func (r *CorrelationRedisStore) Put(ctx context.Context, correlationID string, status entities.Status) error {
	if err := r.client.Set(ctx, correlationKey(correlationID), string(status), r.ttl).Err(); err != nil {
		return fmt.Errorf("set correlation %s: %w", correlationID, err)
	}
	return nil
}

func (r *CorrelationRedisStore) Get(ctx context.Context, correlationID string) (entities.Status, bool, error) {
	val, err := r.client.Get(ctx, correlationKey(correlationID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get correlation %s: %w", correlationID, err)
	}
	return entities.Status(val), true, nil
}
