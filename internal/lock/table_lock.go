// Package lock provides a Redis-backed per-table lock used by the
// booking coordinator when several daemon instances share one database.
// The lock is advisory: the storage transaction remains the
// authoritative guard against double booking, and a missing or
// unreachable Redis degrades every operation to a no-op.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our
// token, so an instance whose lock already expired cannot release a
// lock acquired by someone else.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TableLocker acquires short-lived per-table locks with SET NX PX.
type TableLocker struct {
	rdb     *redis.Client // nil disables locking entirely
	ttl     time.Duration // lock auto-expiry, bounds work done under the lock
	retries int           // acquisition attempts before giving up
	backoff time.Duration // pause between attempts
}

// NewTableLocker returns a TableLocker over the given client.  A nil
// client is accepted and produces a locker whose Lock always succeeds
// as a no-op.
func NewTableLocker(rdb *redis.Client, ttl time.Duration) *TableLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &TableLocker{rdb: rdb, ttl: ttl, retries: 10, backoff: 50 * time.Millisecond}
}

// Lock acquires the lock for the table and returns a release closure.
// Acquisition retries briefly and then fails; callers treat failure as
// advisory and proceed on storage atomicity alone.
func (l *TableLocker) Lock(ctx context.Context, tableID uint64) (func(), error) {
	if l.rdb == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("lock:table:%d", tableID)
	token, err := randomToken(16)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < l.retries; attempt++ {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				// Release on a fresh context so a cancelled request
				// still returns the lock promptly.
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return nil, fmt.Errorf("lock %s still held after %d attempts", key, l.retries)
}

// randomToken returns n random bytes hex-encoded, used as the lock
// ownership token.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
