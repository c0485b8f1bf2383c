package cache

import (
	"context"
	"time"
)

// Store is the shared cache + slot-lock capability consumed by the booking
// core. Get returns ok=false on a miss. Lock is set-if-not-exists with an
// expiry lease; Unlock releases it early (expiry is the crash fallback).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
