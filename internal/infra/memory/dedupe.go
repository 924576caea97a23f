package memory

import (
	"context"
	"sync"
	"time"
)

// PostDeduper is the in-process counterpart of redis.PostDeduper.
type PostDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewPostDeduper(ttl time.Duration) *PostDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// FirstSeen claims key and reports whether this caller was first within ttl.
func (d *PostDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return false, nil
	}
	d.seen[key] = now
	if len(d.seen) > 4096 {
		for k, at := range d.seen {
			if now.Sub(at) >= d.ttl {
				delete(d.seen, k)
			}
		}
	}
	return true, nil
}
