package ports

import (
	"context"
	"time"
)

// ResponseCache stores raw API response bodies keyed by request URL.
// Get returns core.ErrCacheMiss when the key is absent or expired.
// Put with ttl <= 0 stores the body without expiry.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, ttl time.Duration) error
}
