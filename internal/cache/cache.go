package cache

import (
	"context"
	"time"
)

// Cache is the interface the tariff catalog uses to memoize per-code
// validity schedules
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
}
