package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL       = 15 * time.Minute
	DefaultTTLJitter = 5 * time.Minute
	DefaultKeyPrefix = "cart:"
)

type RedisOption func(*RedisCache)

// WithTTL sets the base expiry and the random extra added on each write.
func WithTTL(base, jitter time.Duration) RedisOption {
	return func(r *RedisCache) {
		r.baseTTL = base
		r.jitter = jitter
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) { r.prefix = prefix }
}

// RedisCache keeps each cart in a hash under <prefix><userID>: the JSON
// document in field cart and its version in field version.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
	jitter  time.Duration
	prefix  string
}

func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	r := &RedisCache{
		client:  client,
		baseTTL: DefaultTTL,
		jitter:  DefaultTTLJitter,
		prefix:  DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// setScript stores a cart unless the key already holds a newer version.
var setScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'cart', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// invalidateScript drops the cached cart and remembers the version written,
// so later fills with older carts are refused.
var invalidateScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'version', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, r.key(userID), "cart").Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	cart := new(domain.Cart)
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return cart, nil
}

// Set caches cart unless a newer version was written or invalidated since.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	keys := []string{r.key(userID)}
	if err := setScript.Run(ctx, r.client, keys, cart.Version, payload, r.ttl().Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate is called after version was saved to the store.
func (r *RedisCache) Invalidate(ctx context.Context, userID string, version int64) error {
	keys := []string{r.key(userID)}
	if err := invalidateScript.Run(ctx, r.client, keys, version, r.ttl().Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ttl spreads the expiry of carts cached at the same moment.
func (r *RedisCache) ttl() time.Duration {
	if r.jitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + rand.N(r.jitter)
}

func (r *RedisCache) key(userID string) string {
	return r.prefix + userID
}
