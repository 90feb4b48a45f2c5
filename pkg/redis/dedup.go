package redis

import (
	"context"
	"fmt"
	"time"
)

// Dedup tracks already-seen identifiers (feed entry GUIDs) so repeated
// daily collections do not double-count mentions. Entries expire after
// a TTL. With Redis disabled every identifier looks fresh, which only
// overcounts within a single process restart window.
type Dedup struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewDedup creates a dedup tracker
func NewDedup(client *Client, prefix string, ttl time.Duration) *Dedup {
	return &Dedup{client: client, prefix: prefix, ttl: ttl}
}

// Seen marks id as seen and reports whether it had been seen before.
func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	if !d.client.Enabled() {
		return false, nil
	}

	key := fmt.Sprintf("%s:seen:%s", d.prefix, id)
	set, err := d.client.Redis().SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	// SetNX succeeded => first sighting
	return !set, nil
}
