package shared

import (
	"context"
	"time"
)

// DefaultDedupTTL is how long an accepted webhook id is remembered. The
// platform stops redelivering a webhook well before that.
const DefaultDedupTTL = 24 * time.Hour

// IdempotencyStore remembers accepted webhook ids so a redelivery is
// acknowledged without fanning out twice. Keys are namespaced by the caller,
// e.g. "webhook:<id>".
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It reports false when the key was
	// already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget drops the claim after a failed enqueue so the redelivery gets
	// through.
	Forget(ctx context.Context, key string) error
	Close() error
}
