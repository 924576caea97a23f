// File: internal/infra/redis/dedupe.go
package redis

import (
	"context"
	"time"
)

// PostDeduper remembers channel posts that were already dispatched so a
// redelivered update does not order twice.
type PostDeduper struct {
	client RedisClient
	ttl    time.Duration
}

func NewPostDeduper(client RedisClient, ttl time.Duration) *PostDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostDeduper{client: client, ttl: ttl}
}

// FirstSeen atomically claims key and reports whether this caller was first.
func (d *PostDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, "dispatched:"+key, 1, d.ttl)
}
