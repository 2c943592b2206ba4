package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Stock changes on every sale, so product entries are kept short-lived.
const defaultProductTTL = 30 * time.Second

// A fill that read the product before an invalidation must finish within
// this window to be rejected.
const versionFloorTTL = time.Minute

// KEYS[1] product entry, KEYS[2] version floor.
// ARGV[1] payload, ARGV[2] version, ARGV[3] ttl in ms.
var setIfCurrent = redis.NewScript(`
local floor = redis.call('GET', KEYS[2])
if floor and tonumber(ARGV[2]) < tonumber(floor) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// KEYS[1] product entry, KEYS[2] version floor.
// ARGV[1] minimum version, ARGV[2] floor ttl in ms.
var invalidate = redis.NewScript(`
redis.call('DEL', KEYS[1])
local floor = redis.call('GET', KEYS[2])
if floor and tonumber(floor) > tonumber(ARGV[1]) then
	redis.call('PEXPIRE', KEYS[2], ARGV[2])
	return 0
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
return 1
`)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultProductTTL,
	}
}

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

// cachedProduct keeps the version field, which domain.Product hides from JSON.
type cachedProduct struct {
	domain.Product
	Version int64 `json:"version"`
}

func (r *RedisCache) Get(ctx context.Context, productID string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cp cachedProduct
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	p := cp.Product
	p.Version = cp.Version
	return &p, nil
}

func (r *RedisCache) Set(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(cachedProduct{Product: *product, Version: product.Version})
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Second
	keys := []string{cacheKey(product.ID), floorKey(product.ID)}
	ttl := (r.baseTTL + jitter).Milliseconds()
	if err := setIfCurrent.Run(ctx, r.client, keys, data, product.Version, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, productID string, minVersion int64) error {
	keys := []string{cacheKey(productID), floorKey(productID)}
	if err := invalidate.Run(ctx, r.client, keys, minVersion, versionFloorTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

// Both keys share a hash tag so the scripts work on Redis Cluster.
func cacheKey(productID string) string {
	return fmt.Sprintf("product:{%s}", productID)
}

func floorKey(productID string) string {
	return fmt.Sprintf("product:{%s}:floor", productID)
}
