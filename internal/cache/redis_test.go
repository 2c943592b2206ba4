package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return cache, mr, cleanup
}

func testProduct() *domain.Product {
	price := int64(2500)
	return &domain.Product{
		ID:      "p1",
		Name:    "Hoodie",
		Price:   &price,
		Version: 7,
		Variants: []domain.ColorVariant{
			{Color: "Black", Sizes: []domain.Size{{Name: "S", Quantity: 4}}},
		},
	}
}

func TestSetAndGet(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))
	assert.True(t, mr.Exists(cacheKey("p1")))

	got, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Hoodie", got.Name)
	assert.Equal(t, int64(7), got.Version)
	require.NotNil(t, got.Price)
	assert.Equal(t, int64(2500), *got.Price)
	assert.Equal(t, 4, got.Variants[0].Sizes[0].Quantity)
}

func TestGet_Miss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	got, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestGet_CorruptedData(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("p1"), "{not json"))
	_, err := cache.Get(context.Background(), "p1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_TTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), testProduct()))

	ttl := mr.TTL(cacheKey("p1"))
	assert.GreaterOrEqual(t, ttl, defaultProductTTL)
	assert.Less(t, ttl, defaultProductTTL+5*time.Second)

	mr.FastForward(time.Minute)
	_, err := cache.Get(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestInvalidate(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))
	require.NoError(t, cache.Invalidate(ctx, "p1", 8))
	assert.False(t, mr.Exists(cacheKey("p1")))

	// invalidating a missing key is not an error
	require.NoError(t, cache.Invalidate(ctx, "p1", 8))
}

func TestSet_SkipsVersionOlderThanInvalidation(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	// a reader loaded version 7, then a write bumped the product to 8
	require.NoError(t, cache.Invalidate(ctx, "p1", 8))
	require.NoError(t, cache.Set(ctx, testProduct()))
	assert.False(t, mr.Exists(cacheKey("p1")))

	fresh := testProduct()
	fresh.Version = 8
	fresh.Variants[0].Sizes[0].Quantity = 3
	require.NoError(t, cache.Set(ctx, fresh))
	got, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Version)
	assert.Equal(t, 3, got.Variants[0].Sizes[0].Quantity)

	// the floor never moves backwards
	require.NoError(t, cache.Invalidate(ctx, "p1", 5))
	require.NoError(t, cache.Set(ctx, testProduct()))
	assert.False(t, mr.Exists(cacheKey("p1")))

	// once the floor expires any fill is accepted again
	mr.FastForward(2 * time.Minute)
	require.NoError(t, cache.Set(ctx, testProduct()))
	assert.True(t, mr.Exists(cacheKey("p1")))
}

func TestGet_RedisDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()
	_, err := cache.Get(context.Background(), "p1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
