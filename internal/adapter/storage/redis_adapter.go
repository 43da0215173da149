package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyTTL = 24 * time.Hour

// releaseIdempotencyScript deletes the key only while it still holds the
// caller's token, so a late release cannot drop someone else's reservation.
var releaseIdempotencyScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, token, idempotencyKeyTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "setnx idempotency key")
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key, token string) error {
	err := releaseIdempotencyScript.Run(ctx, r.client, []string{key}, token).Err()
	return errors.Wrap(err, "release idempotency key")
}
