package port

import "context"

type CacheRepository interface {
	// SetIdempotency reserves key for token, returns false if already reserved
	SetIdempotency(ctx context.Context, key, token string) (bool, error)

	// ReleaseIdempotency drops the reservation if it is still held by token
	ReleaseIdempotency(ctx context.Context, key, token string) error
}
