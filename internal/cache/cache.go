// Package cache provides the ephemeral key-value lookups used by peripheral
// flows (account-number resolution, short-lived tokens). Redis backs it when
// configured; otherwise an in-memory store keeps the process functional.
package cache

import (
	"context"
	"time"
)

// Cache is the consumed contract: get/set/delete, nothing more. A missing key
// is reported as found=false rather than an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
