// Package redis provides a lock.Locker backed by Redis, for deployments
// where several processes drive the same ledger store.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/xraph/tally/lock"
)

const (
	defaultPrefix = "tally:lock:"
	defaultTTL    = 30 * time.Second
	defaultRetry  = 25 * time.Millisecond
)

// unlockScript deletes the key only when it still carries our token.
var unlockScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// compile-time interface check
var _ lock.Locker = (*Locker)(nil)

// Locker implements lock.Locker with SET NX PX and a compare-and-delete
// release.
type Locker struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix (default "tally:lock:").
func WithPrefix(prefix string) Option {
	return func(l *Locker) { l.prefix = prefix }
}

// WithTTL sets how long a lock survives a crashed holder.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// WithRetryInterval sets the polling interval while waiting for a lock.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) { l.retry = d }
}

// New creates a Redis-backed Locker.
func New(client goredis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		prefix: defaultPrefix,
		ttl:    defaultTTL,
		retry:  defaultRetry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls SET NX until it wins or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	k := l.prefix + key

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("tally/redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(k, token) })
	}, nil
}

// unlock deletes k only while it still holds token. It runs on a fresh
// context so a canceled caller still frees the key.
func (l *Locker) unlock(k, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.retry*40)
	defer cancel()
	_ = unlockScript.Run(ctx, l.client, []string{k}, token).Err() //nolint:errcheck // TTL reclaims the key
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tally/redis: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
