package redis

import (
	"context"
	"fmt"
	"time"
)

// Locker hands out best-effort exclusive leases so that two processes never
// grid the same day at once
type Locker struct {
	client *Client
	prefix string
}

// NewLocker creates a locker
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Acquire takes the lease for key. ok is false when someone else holds it.
// The returned release func is safe to call when ok is false.
func (l *Locker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (release func(), ok bool, err error) {
	noop := func() {}
	if !l.client.Enabled() {
		return noop, true, nil
	}

	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)
	ok, err = l.client.Redis().SetNX(ctx, fullKey, owner, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return noop, false, nil
	}

	release = func() {
		// 다른 소유자의 락은 지우지 않음
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cur, err := l.client.Redis().Get(rctx, fullKey).Result(); err == nil && cur == owner {
			l.client.Redis().Del(rctx, fullKey)
		}
	}
	return release, true, nil
}
